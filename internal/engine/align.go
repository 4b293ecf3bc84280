package engine

import (
	"math"

	"gridbot/internal/models"
)

// alignEpsilon гасит дрожание плавающей точки на границах ячейки.
const alignEpsilon = 1e-9

const priceDecimals = 8

// Align приводит цену к кратному шагу сетки.
func Align(price, brick float64, mode models.RoundMode) float64 {
	if brick <= 0 {
		return roundTo(price, priceDecimals)
	}

	ratio := price / brick
	var n float64
	switch mode {
	case models.RoundUp:
		n = math.Ceil(ratio - alignEpsilon)
	case models.RoundDown:
		n = math.Floor(ratio + alignEpsilon)
	default:
		n = math.Round(ratio)
	}

	return roundTo(n*brick, priceDecimals)
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow10(decimals)
	return math.Round(value*factor) / factor
}
