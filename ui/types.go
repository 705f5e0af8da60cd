// Package ui draws the control strip below the board.
package ui

import rl "github.com/gen2brain/raylib-go/raylib"

// Theme holds UI styling constants.
type Theme struct {
	PanelBg     rl.Color
	PanelBorder rl.Color
	LabelColor  rl.Color
	ValueColor  rl.Color
	Warning     rl.Color
	Padding     int32
	LineHeight  int32
	ButtonW     int32
	ButtonH     int32
	FontSize    int32
}

// DefaultTheme returns the default UI theme.
func DefaultTheme() Theme {
	return Theme{
		PanelBg:     rl.Color{R: 20, G: 25, B: 30, A: 240},
		PanelBorder: rl.Color{R: 60, G: 70, B: 80, A: 255},
		LabelColor:  rl.LightGray,
		ValueColor:  rl.RayWhite,
		Warning:     rl.Yellow,
		Padding:     8,
		LineHeight:  16,
		ButtonW:     118,
		ButtonH:     22,
		FontSize:    12,
	}
}
