package main

import (
	"io"
	"runtime"
	"text/template"
	"time"

	"github.com/plus3/hopper/heap"
)

type Report struct {
	// Configuration
	Duration      time.Duration
	GrowIncrement int
	ChurnWorkers  int
	FSChurn       bool

	// Results
	TotalFrames   int64
	TotalTime     time.Duration
	FrameTime     Stats
	ChurnedAllocs int64
	HeapStats     heap.Stats
	Leaks         int
	MemStatsStart runtime.MemStats
	MemStatsEnd   runtime.MemStats
}

type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Samples []time.Duration
}

func (s *Stats) Finalize() {
	if len(s.Samples) == 0 {
		return
	}

	var total time.Duration
	s.Min = s.Samples[0]
	s.Max = s.Samples[0]

	for _, sample := range s.Samples {
		if sample < s.Min {
			s.Min = sample
		}
		if sample > s.Max {
			s.Max = sample
		}
		total += sample
	}
	s.Avg = total / time.Duration(len(s.Samples))
}

func (r *Report) Generate(w io.Writer) error {
	const reportTemplate = `
# Hopper Stress Test Report

## Test Configuration
- **Run Duration:** {{.Duration}}
- **Heap Grow Increment:** {{.GrowIncrement}} bytes
- **Churn Workers:** {{.ChurnWorkers}}
- **File Churn:** {{.FSChurn}}

## Performance Results
- **Total Frames:** {{.TotalFrames}}
- **Total Test Time:** {{.TotalTime}}
- **Frame Time:**
  - **Avg:** {{.FrameTime.Avg}}
  - **Min:** {{.FrameTime.Min}}
  - **Max:** {{.FrameTime.Max}}

## Engine Heap
- **Arenas:** {{.HeapStats.Arenas}}
- **Reserved:** {{.HeapStats.Reserved}} bytes
- **In Use At Shutdown:** {{.HeapStats.InUse}} bytes
- **Peak In Use:** {{.HeapStats.Peak}} bytes
- **Live Allocations At Shutdown:** {{.HeapStats.Allocations}}
- **Churned Allocations:** {{.ChurnedAllocs}}
- **Leaked Blocks:** {{.Leaks}}

## Go Runtime Memory (Raw Bytes)
- Heap Alloc:  {{.MemStatsStart.HeapAlloc}} (start) -> {{.MemStatsEnd.HeapAlloc}} (end) -> delta: {{bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc}}
- Total Alloc: {{.MemStatsStart.TotalAlloc}} (start) -> {{.MemStatsEnd.TotalAlloc}} (end) -> delta: {{bsub .MemStatsEnd.TotalAlloc .MemStatsStart.TotalAlloc}}
- Sys Memory:  {{.MemStatsStart.Sys}} (start) -> {{.MemStatsEnd.Sys}} (end) -> delta: {{bsub .MemStatsEnd.Sys .MemStatsStart.Sys}}
- Num GC:      {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}
`

	fm := template.FuncMap{
		"bsub": func(a, b uint64) int64 {
			return int64(a) - int64(b)
		},
		"usub": func(a, b uint32) uint32 {
			return a - b
		},
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, r)
}
