package sim

import (
	"fmt"
	"math"

	"github.com/rustyeddy/bts/pkg/id"
)

// OrderSide is the direction of an order.
type OrderSide int8

const (
	Buy OrderSide = iota + 1
	Sell
)

func (s OrderSide) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	}
	return fmt.Sprintf("OrderSide(%d)", int8(s))
}

// EntryKind selects how an order enters the market.
type EntryKind int8

const (
	// Market orders fill on the next tick if the price trades, or are
	// cancelled. They never wait across ticks.
	Market EntryKind = iota + 1
	// Limit orders wait in the book until their price trades.
	Limit
)

func (k EntryKind) String() string {
	switch k {
	case Market:
		return "Market"
	case Limit:
		return "Limit"
	}
	return fmt.Sprintf("EntryKind(%d)", int8(k))
}

// EntryRule is the entry half of an order.
type EntryRule struct {
	Kind  EntryKind
	Price float64
}

// MarketAt and LimitAt build entry rules.
func MarketAt(price float64) EntryRule { return EntryRule{Kind: Market, Price: price} }
func LimitAt(price float64) EntryRule  { return EntryRule{Kind: Limit, Price: price} }

func (e EntryRule) String() string { return fmt.Sprintf("%s(%v)", e.Kind, e.Price) }

// ExitKind selects how a position is closed automatically.
type ExitKind int8

const (
	TakeProfitAndStopLoss ExitKind = iota + 1
	TrailingStop
)

func (k ExitKind) String() string {
	switch k {
	case TakeProfitAndStopLoss:
		return "TakeProfitAndStopLoss"
	case TrailingStop:
		return "TrailingStop"
	}
	return fmt.Sprintf("ExitKind(%d)", int8(k))
}

// ExitRule is the optional exit half of an order.
//
// For TakeProfitAndStopLoss, TakeProfit and StopLoss are price levels and a
// zero level is disabled. For TrailingStop, Price is the reference price the
// stop trails and Percent the distance in percent.
type ExitRule struct {
	Kind       ExitKind
	TakeProfit float64
	StopLoss   float64
	Price      float64
	Percent    float64
}

// TakeProfitStopLoss builds a take-profit/stop-loss exit. Pass 0 to disable a leg.
func TakeProfitStopLoss(tp, sl float64) ExitRule {
	return ExitRule{Kind: TakeProfitAndStopLoss, TakeProfit: tp, StopLoss: sl}
}

// TrailingStopAt builds a trailing stop starting at price, percent away.
func TrailingStopAt(price, percent float64) ExitRule {
	return ExitRule{Kind: TrailingStop, Price: price, Percent: percent}
}

// Validate checks the exit levels.
func (x ExitRule) Validate() error {
	switch x.Kind {
	case TakeProfitAndStopLoss:
		if x.TakeProfit < 0 || x.StopLoss < 0 {
			return fmt.Errorf("%w: tp=%v, sl=%v", ErrNegativeExitLevel, x.TakeProfit, x.StopLoss)
		}
	case TrailingStop:
		if x.Price <= 0 || x.Percent <= 0 {
			return fmt.Errorf("%w: price=%v, percent=%v", ErrInvalidTrailingStop, x.Price, x.Percent)
		}
	default:
		return fmt.Errorf("%w: %s is not an exit rule", ErrMismatchedOrderType, x.Kind)
	}
	return nil
}

func (x ExitRule) String() string {
	switch x.Kind {
	case TakeProfitAndStopLoss:
		return fmt.Sprintf("%s(%v, %v)", x.Kind, x.TakeProfit, x.StopLoss)
	case TrailingStop:
		return fmt.Sprintf("%s(%v, %v%%)", x.Kind, x.Price, x.Percent)
	}
	return x.Kind.String()
}

// Order is an intent to open a position. Orders compare by ID.
type Order struct {
	ID       string
	Entry    EntryRule
	Exit     *ExitRule
	Quantity float64
	Side     OrderSide
}

// NewOrder builds an order without an exit rule.
func NewOrder(entry EntryRule, quantity float64, side OrderSide) Order {
	return Order{
		ID:       id.New(),
		Entry:    entry,
		Quantity: quantity,
		Side:     side,
	}
}

// NewOrderWithExit builds an order that carries an exit rule into its position.
func NewOrderWithExit(entry EntryRule, exit ExitRule, quantity float64, side OrderSide) Order {
	o := NewOrder(entry, quantity, side)
	o.Exit = &exit
	return o
}

// EntryPrice is the price the order fills at.
func (o Order) EntryPrice() float64 { return o.Entry.Price }

// Cost is the notional locked by the order: entry price times quantity.
func (o Order) Cost() float64 { return o.Entry.Price * o.Quantity }

// IsMarket reports whether the order is fill-or-cancel.
func (o Order) IsMarket() bool { return o.Entry.Kind == Market }

// Validate checks the order before it is placed.
func (o Order) Validate() error {
	if o.Quantity <= 0 || math.IsNaN(o.Quantity) || math.IsInf(o.Quantity, 0) {
		return fmt.Errorf("order %s: %w: got %v", o.ID, ErrInvalidQuantity, o.Quantity)
	}
	switch o.Entry.Kind {
	case Market, Limit:
	default:
		return fmt.Errorf("order %s: %w: %s is not an entry rule", o.ID, ErrMismatchedOrderType, o.Entry.Kind)
	}
	if o.Entry.Price <= 0 || math.IsNaN(o.Entry.Price) || math.IsInf(o.Entry.Price, 0) {
		return fmt.Errorf("order %s: %w: got %v", o.ID, ErrInvalidEntryPrice, o.Entry.Price)
	}
	if o.Side != Buy && o.Side != Sell {
		return fmt.Errorf("order %s: %w: side %s", o.ID, ErrMismatchedOrderType, o.Side)
	}
	if o.Exit != nil {
		if err := o.Exit.Validate(); err != nil {
			return fmt.Errorf("order %s: %w", o.ID, err)
		}
	}
	return nil
}

// clone copies the order so the exit rule is not shared.
func (o Order) clone() Order {
	if o.Exit != nil {
		x := *o.Exit
		o.Exit = &x
	}
	return o
}

func (o Order) String() string {
	s := fmt.Sprintf("%s %s %v @ %s", o.ID, o.Side, o.Quantity, o.Entry)
	if o.Exit != nil {
		s += " exit " + o.Exit.String()
	}
	return s
}
