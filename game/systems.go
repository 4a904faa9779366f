package game

import "github.com/plus3/hopper/ecs"

// collidesWithTraffic reports whether the given transform overlaps any car.
// Scale stands in for the bounding box, same as the original scene.
func (g *Game) collidesWithTraffic(player *Transform) bool {
	mask := g.transformType.Bit() | g.trafficType.Bit()

	for q := g.world.Query(mask); q.Valid(); q.Next() {
		transform := ecs.As[Transform](q.Component(g.transformType))

		withinY := abs32(transform.Translation.Y-player.Translation.Y) <
			transform.Scale.Y+player.Scale.Y
		withinZ := abs32(transform.Translation.Z-player.Translation.Z) <
			transform.Scale.Z+player.Scale.Z
		if withinY && withinZ {
			return true
		}
	}
	return false
}

func (g *Game) updatePlayers(dt float32, keys Keys) {
	mask := g.transformType.Bit() | g.playerType.Bit()

	for q := g.world.Query(mask); q.Valid(); q.Next() {
		transform := ecs.As[Transform](q.Component(g.transformType))
		player := ecs.As[Player](q.Component(g.playerType))

		sizeY := transform.Scale.Y
		sizeZ := transform.Scale.Z

		// Reaching the top edge wins; teleport back to the start row.
		if abs32(g.bounds.Top+sizeZ-transform.Translation.Z) < 0.01 {
			transform.Translation.Y = 0
			transform.Translation.Z = g.bounds.Bottom
		}

		// Getting hit loses; same teleport.
		if g.collidesWithTraffic(transform) {
			transform.Translation.Y = 0
			transform.Translation.Z = g.bounds.Bottom
		}

		var move Vec3
		if keys&KeyUp != 0 {
			move = move.Add(Up().Scale(-dt))
		}
		if keys&KeyDown != 0 {
			move = move.Add(Up().Scale(dt))
		}
		if keys&KeyLeft != 0 {
			move = move.Add(Right().Scale(-dt))
		}
		if keys&KeyRight != 0 {
			move = move.Add(Right().Scale(dt))
		}
		move = move.Scale(player.Speed)

		newY := transform.Translation.Y + move.Y
		transform.Translation.Y = clamp32(newY, g.bounds.Left+sizeY, g.bounds.Right-sizeY)

		newZ := transform.Translation.Z + move.Z
		transform.Translation.Z = clamp32(newZ, g.bounds.Top+sizeZ, g.bounds.Bottom-sizeZ)
	}
}

func (g *Game) updateTraffic(dt float32) {
	mask := g.transformType.Bit() | g.trafficType.Bit()

	for q := g.world.Query(mask); q.Valid(); q.Next() {
		transform := ecs.As[Transform](q.Component(g.transformType))
		traffic := ecs.As[Traffic](q.Component(g.trafficType))

		// Cars that leave one edge wrap around to the other.
		var move Vec3
		if traffic.MovingLeft {
			if transform.Translation.Y <= g.bounds.Left-transform.Scale.Y {
				transform.Translation.Y = g.bounds.Right + transform.Scale.Y
			}
			move = Right().Scale(-dt)
		} else {
			if transform.Translation.Y >= g.bounds.Right+transform.Scale.Y {
				transform.Translation.Y = g.bounds.Left - transform.Scale.Y
			}
			move = Right().Scale(dt)
		}

		move = move.Scale(traffic.Speed)
		transform.Translation = transform.Translation.Add(move)
	}
}

func (g *Game) drawModels() {
	if g.renderer == nil {
		return
	}

	for cq := g.world.Query(g.cameraType.Bit()); cq.Valid(); cq.Next() {
		camera := ecs.As[Camera](cq.Component(g.cameraType))

		mask := g.transformType.Bit() | g.modelType.Bit()
		for q := g.world.Query(mask); q.Valid(); q.Next() {
			transform := ecs.As[Transform](q.Component(g.transformType))
			model := ecs.As[Model](q.Component(g.modelType))

			uniform := ModelUniform{
				Projection: camera.Projection,
				Model:      TransformMatrix(transform.Translation, transform.Scale),
				View:       camera.View,
			}
			g.renderer.PushModel(q.Entity(), model.Mesh, model.Shader, uniform)
		}
	}
}
