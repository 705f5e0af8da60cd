// Package components defines the ECS components of the render side-table.
package components

// Particle links an entity to its slot in the coordinator's particle order.
type Particle struct {
	Index  int // position in the flat particle slice
	Worker int // owning worker, from the partition
}

// Appearance holds how a particle is drawn.
type Appearance struct {
	Size  float32
	Tint  uint32 // 0xRRGGBB
	Alpha float32
}
