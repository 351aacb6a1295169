package sim

import "github.com/rustyeddy/bts/market"

// exitLevel evaluates the position's exit rule against c. It returns the
// price to close at and why, or ok=false when the position stays open. A
// trailing stop that does not trigger may ratchet its reference, which is
// why p is a pointer.
func exitLevel(p *Position, c market.Candle) (price float64, reason ExitReason, ok bool, err error) {
	if p.Exit == nil {
		return 0, ExitNone, false, nil
	}
	if err := p.Exit.Validate(); err != nil {
		return 0, ExitNone, false, err
	}

	switch p.Exit.Kind {
	case TakeProfitAndStopLoss:
		if hitTakeProfit(p, c) {
			return p.Exit.TakeProfit, ExitTakeProfit, true, nil
		}
		if hitStopLoss(p, c) {
			return p.Exit.StopLoss, ExitStopLoss, true, nil
		}
		return 0, ExitNone, false, nil

	case TrailingStop:
		trigger := trailingTrigger(p)
		if p.Side == Long {
			if c.Low() <= trigger {
				return trigger, ExitTrailingStop, true, nil
			}
			if c.High() > p.Exit.Price {
				p.Exit.Price = c.High()
			}
		} else {
			if c.High() >= trigger {
				return trigger, ExitTrailingStop, true, nil
			}
			if c.Low() < p.Exit.Price {
				p.Exit.Price = c.Low()
			}
		}
		return 0, ExitNone, false, nil
	}
	return 0, ExitNone, false, ErrMismatchedOrderType
}

func hitTakeProfit(p *Position, c market.Candle) bool {
	tp := p.Exit.TakeProfit
	if tp <= 0 {
		return false
	}
	if p.Side == Long {
		return tp <= c.High()
	}
	return tp >= c.Low()
}

func hitStopLoss(p *Position, c market.Candle) bool {
	sl := p.Exit.StopLoss
	if sl <= 0 {
		return false
	}
	if p.Side == Long {
		return sl >= c.Low()
	}
	return sl <= c.High()
}

// trailingTrigger is the stop price implied by the current reference.
func trailingTrigger(p *Position) float64 {
	if p.Side == Long {
		return market.SubPercent(p.Exit.Price, p.Exit.Percent)
	}
	return market.AddPercent(p.Exit.Price, p.Exit.Percent)
}
