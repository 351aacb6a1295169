package market

// Percentage helpers. Percent arguments are human readable: 10 means 10%.

// AddPercent returns v increased by pct percent.
func AddPercent(v, pct float64) float64 { return v + v*(pct/100) }

// SubPercent returns v decreased by pct percent.
func SubPercent(v, pct float64) float64 { return v - v*(pct/100) }

// HowMany returns pct percent of v.
func HowMany(v, pct float64) float64 { return pct * (v / 100) }

// Change returns the percentage change going from v to to.
func Change(v, to float64) float64 { return (to - v) / v * 100 }
