// Package script is the Lua front-end for the engine. It adapts the ECS's
// typed handles and the game's field accessors to a gopher-lua VM; the core
// packages know nothing about Lua. Single-goroutine access only (the game
// loop).
package script

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/plus3/hopper/ecs"
)

// FieldAccessor reads and writes one component type's fields by name. The
// game package provides an implementation per component type, so field names
// stay out of the core packages.
type FieldAccessor interface {
	Read(comp []byte, field string) (any, bool)
	Write(comp []byte, field string, v any) bool
}

// Engine wraps a single Lua VM bound to one ECS world.
type Engine struct {
	vm    *lua.LState
	world *ecs.ECS
	accs  map[ecs.TypeID]FieldAccessor
	log   *zap.Logger
}

// New creates an engine bound to the given world. Component types must be
// published with Bind before scripts can touch them.
func New(world *ecs.ECS, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		vm:    lua.NewState(),
		world: world,
		accs:  make(map[ecs.TypeID]FieldAccessor),
		log:   log,
	}
	e.registerAPI()
	return e
}

// Close shuts the VM down.
func (e *Engine) Close() {
	e.vm.Close()
}

// Bind publishes a registered component type to scripts: the global name
// holds the type id, and component userdata for it dispatches field access
// through acc.
func (e *Engine) Bind(name string, id ecs.TypeID, acc FieldAccessor) {
	e.accs[id] = acc
	e.vm.SetGlobal(name, lua.LNumber(id))
}

// Run executes a chunk of Lua source.
func (e *Engine) Run(src string) error {
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

// LoadDir runs every .lua file in a directory, in lexical order. Missing
// directories are skipped.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("script: load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}
