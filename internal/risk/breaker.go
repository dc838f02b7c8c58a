package risk

// BreakerState is the circuit breaker position. States only worsen as
// losses deepen; Halted never clears on its own.
type BreakerState int

const (
	BreakerNormal BreakerState = iota
	BreakerWarning
	BreakerCritical
	BreakerHalted
)

func (s BreakerState) String() string {
	switch s {
	case BreakerNormal:
		return "normal"
	case BreakerWarning:
		return "warning"
	case BreakerCritical:
		return "critical"
	case BreakerHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// SizingMultiplier scales the Kelly fraction for the state.
func (s BreakerState) SizingMultiplier() float64 {
	switch s {
	case BreakerNormal:
		return 1.0
	case BreakerWarning:
		return 0.5
	case BreakerCritical:
		return 0.25
	default:
		return 0
	}
}

// EdgeMultiplier raises the minimum edge threshold for the state.
// Under Critical only well-above-threshold edges are accepted.
func (s BreakerState) EdgeMultiplier() float64 {
	if s == BreakerCritical {
		return 2.0
	}
	return 1.0
}
