package targeting

import (
	"fmt"
	"math"
)

// Direction is the rotation sense implied by a commanded turret power.
type Direction int

const (
	Stopped Direction = iota
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Stopped:
		return "STOPPED"
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// DirectionOf maps a power command to its direction: >0 Left, <0 Right, 0 Stopped.
func DirectionOf(power float64) Direction {
	switch {
	case power > 0:
		return Left
	case power < 0:
		return Right
	default:
		return Stopped
	}
}

// ClampFloat clamps value between min and max
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampPower clamps a normalized power command to [-1, 1]. NaN becomes 0.
func ClampPower(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return ClampFloat(p, -1, 1)
}

// sign returns -1, 0 or +1.
func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// BoolToInt converts bool to int (for CSV/telemetry logging)
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
