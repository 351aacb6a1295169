package strategies

// Grid enumerates Params for the optimizer: every EMA period crossed with
// every MACD triple and trailing percent. Empty axes keep Base's value.
type Grid struct {
	Base             Params
	EMAPeriods       []int
	MACD             [][3]int
	TrailingPercents []float64
}

func (g Grid) Generate() []Params {
	emas := g.EMAPeriods
	if len(emas) == 0 {
		emas = []int{g.Base.EMAPeriod}
	}
	macds := g.MACD
	if len(macds) == 0 {
		macds = [][3]int{{g.Base.MACDFast, g.Base.MACDSlow, g.Base.MACDSignal}}
	}
	trails := g.TrailingPercents
	if len(trails) == 0 {
		trails = []float64{g.Base.TrailingPercent}
	}

	out := make([]Params, 0, len(emas)*len(macds)*len(trails))
	for _, m := range macds {
		for _, tr := range trails {
			for _, ema := range emas {
				p := g.Base
				p.EMAPeriod = ema
				p.MACDFast, p.MACDSlow, p.MACDSignal = m[0], m[1], m[2]
				p.TrailingPercent = tr
				out = append(out, p)
			}
		}
	}
	return out
}

// IntRange returns from..to inclusive in steps of step.
func IntRange(from, to, step int) []int {
	if step <= 0 {
		step = 1
	}
	var out []int
	for v := from; v <= to; v += step {
		out = append(out, v)
	}
	return out
}

// MACDTriples crosses every fast, slow and signal period in from..to,
// keeping only fast < slow.
func MACDTriples(from, to int) [][3]int {
	var out [][3]int
	for fast := from; fast <= to; fast++ {
		for slow := from; slow <= to; slow++ {
			if fast >= slow {
				continue
			}
			for sig := from; sig <= to; sig++ {
				out = append(out, [3]int{fast, slow, sig})
			}
		}
	}
	return out
}
