package components

// Position is a particle's top-left corner in world pixels.
type Position struct {
	X, Y float32
}

// Velocity is the displacement between the last two reported positions.
type Velocity struct {
	X, Y float32
}
