// Package renderer draws the game with raylib and reads raylib input.
package renderer

import rl "github.com/gen2brain/raylib-go/raylib"

// hexColor converts 0xRRGGBB and an alpha in [0, 1] to a raylib colour.
func hexColor(rgb uint32, alpha float32) rl.Color {
	alpha = min(max(alpha, 0), 1)
	return rl.Color{
		R: uint8(rgb >> 16),
		G: uint8(rgb >> 8),
		B: uint8(rgb),
		A: uint8(alpha * 255),
	}
}
