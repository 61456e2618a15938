package gpio

import "github.com/sweeney/field-logger/internal/indicator"

// ledValues converts a color to on/off line levels in R, G, B order.
func ledValues(c indicator.Color) []int {
	return []int{level(c.R), level(c.G), level(c.B)}
}

func level(intensity uint8) int {
	if intensity > 0 {
		return 1
	}
	return 0
}
