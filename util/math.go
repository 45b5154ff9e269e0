package util

import "math"

// RoundUp rounds input to the given number of decimal places.
func RoundUp(input float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Ceil(input*pow) / pow
}
