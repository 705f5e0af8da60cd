package game

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowswarm/components"
	"github.com/pthm-cable/flowswarm/swarm"
)

// spawnParticles creates one entity per particle at the configured start
// position and returns the positions in index order.
func (g *Game) spawnParticles(workers int) []r2.Vec {
	cfg := g.cfg
	n := cfg.Particles.Count

	start := r2.Vec{X: cfg.Particles.StartX, Y: cfg.Particles.StartY}
	positions := make([]r2.Vec, n)
	g.entities = make([]ecs.Entity, 0, n)

	look := components.Appearance{
		Size:  float32(cfg.Particles.Size),
		Tint:  cfg.Render.ParticleColor,
		Alpha: float32(cfg.Render.ParticleAlpha),
	}
	for w, span := range swarm.Partition(n, workers) {
		for i := span.Start; i < span.End; i++ {
			positions[i] = start
			pos := components.Position{X: float32(start.X), Y: float32(start.Y)}
			vel := components.Velocity{}
			p := components.Particle{Index: i, Worker: w}
			app := look
			g.entities = append(g.entities, g.particleMapper.NewEntity(&pos, &vel, &p, &app))
		}
	}
	return positions
}

// Unload stops the workers and closes telemetry output.
func (g *Game) Unload() {
	g.coord.Stop()
	if g.outputManager != nil {
		if err := g.outputManager.Close(); err != nil {
			g.log.Error("closing output", "error", err)
		}
	}
}
