package sim

import (
	"fmt"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/bts/market"
	"github.com/rustyeddy/bts/pkg/id"
)

// StrategyFunc is called once per candle, before matching and exits.
type StrategyFunc func(e *Engine, c market.Candle) error

// FrameFunc is the strategy shape used with an Aggregation.
type FrameFunc func(e *Engine, f Frame) error

// Fees are fractional rates charged on the position cost when it opens and
// again when it closes. 0.001 is 0.1%.
type Fees struct {
	Market float64 `yaml:"market" json:"market"` // taker rate, Market entries
	Limit  float64 `yaml:"limit" json:"limit"`   // maker rate, Limit entries
}

func (f Fees) Validate() error {
	if !(f.Market > 0) || !(f.Limit > 0) || math.IsInf(f.Market, 0) || math.IsInf(f.Limit, 0) {
		return fmt.Errorf("%w: market=%v, limit=%v", ErrInvalidFees, f.Market, f.Limit)
	}
	return nil
}

type Config struct {
	InitialBalance float64
	Fees           *Fees // nil disables fees
	Logger         *zap.Logger
}

// State is the run state of an Engine.
type State int8

const (
	Idle State = iota
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Finished:
		return "Finished"
	}
	return fmt.Sprintf("State(%d)", int8(s))
}

// Engine replays candles through a strategy and simulates the orders it
// places. An Engine is not safe for concurrent use; the candle slice is
// only read and may be shared between engines.
type Engine struct {
	candles []market.Candle
	fees    *Fees
	log     *zap.Logger

	wallet    *Wallet
	orders    []Order
	positions []Position
	closed    []Position
	events    []Event

	cursor int
	state  State
}

// New builds an engine over candles, which must be non-empty and ordered
// by open time.
func New(candles []market.Candle, cfg Config) (*Engine, error) {
	if len(candles) == 0 {
		return nil, ErrCandleDataEmpty
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].OpenTime().Before(candles[i-1].OpenTime()) {
			return nil, fmt.Errorf("%w: candle %d opens at %s, before %s", ErrUnorderedCandles,
				i, candles[i].OpenTime().Format(time.RFC3339), candles[i-1].OpenTime().Format(time.RFC3339))
		}
	}

	w, err := NewWallet(cfg.InitialBalance)
	if err != nil {
		return nil, err
	}

	var fees *Fees
	if cfg.Fees != nil {
		if err := cfg.Fees.Validate(); err != nil {
			return nil, err
		}
		f := *cfg.Fees
		fees = &f
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		candles: candles,
		fees:    fees,
		log:     log,
		wallet:  w,
	}, nil
}

// Candles returns the shared candle data. Callers must not modify it.
func (e *Engine) Candles() []market.Candle { return e.candles }

// Wallet gives read access to the ledger.
func (e *Engine) Wallet() *Wallet { return e.wallet }

// Fees returns the configured rates, if any.
func (e *Engine) Fees() (Fees, bool) {
	if e.fees == nil {
		return Fees{}, false
	}
	return *e.fees, true
}

func (e *Engine) State() State { return e.state }

// Index is the position of the candle being processed, or len(Candles())
// once the run is over.
func (e *Engine) Index() int { return e.cursor }

// Current returns the candle being processed.
func (e *Engine) Current() (market.Candle, error) {
	if e.cursor >= len(e.candles) {
		return market.Candle{}, fmt.Errorf("%w: index %d", ErrCandleNotFound, e.cursor)
	}
	return e.candles[e.cursor], nil
}

// Orders returns a copy of the pending orders in placement order.
func (e *Engine) Orders() []Order {
	out := make([]Order, len(e.orders))
	for i, o := range e.orders {
		out[i] = o.clone()
	}
	return out
}

// Positions returns a copy of the open positions in fill order.
func (e *Engine) Positions() []Position { return clonePositions(e.positions) }

// ClosedPositions returns the positions closed during this run.
func (e *Engine) ClosedPositions() []Position { return clonePositions(e.closed) }

// Events returns a copy of the event log.
func (e *Engine) Events() []Event { return slices.Clone(e.events) }

func clonePositions(ps []Position) []Position {
	out := make([]Position, len(ps))
	for i, p := range ps {
		p.Order = p.Order.clone()
		out[i] = p
	}
	return out
}

// PlaceOrder validates o and locks its cost. An order without an ID is
// given one.
func (e *Engine) PlaceOrder(o Order) error {
	if o.ID == "" {
		o.ID = id.New()
	}
	if err := o.Validate(); err != nil {
		return err
	}
	if slices.ContainsFunc(e.orders, func(p Order) bool { return p.ID == o.ID }) ||
		slices.ContainsFunc(e.positions, func(p Position) bool { return p.ID == o.ID }) {
		return fmt.Errorf("place order %s: %w", o.ID, ErrDuplicateOrder)
	}
	if err := e.wallet.lock(o.Cost()); err != nil {
		return fmt.Errorf("place order %s: %w", o.ID, err)
	}

	o = o.clone()
	e.orders = append(e.orders, o)
	e.emitWallet()
	e.emitOrder(AddOrder, o)
	e.log.Debug("order placed",
		zap.String("order_id", o.ID),
		zap.Stringer("entry", o.Entry),
		zap.Float64("quantity", o.Quantity))
	return nil
}

// DeleteOrder removes a pending order and releases its funds.
func (e *Engine) DeleteOrder(orderID string) error {
	i := slices.IndexFunc(e.orders, func(o Order) bool { return o.ID == orderID })
	if i < 0 {
		return fmt.Errorf("delete order %s: %w", orderID, ErrOrderNotFound)
	}
	o := e.orders[i]
	if err := e.cancelOrder(o); err != nil {
		return err
	}
	e.orders = slices.Delete(e.orders, i, i+1)
	e.settleLocked()
	return nil
}

// ClosePosition closes an open position at exitPrice and returns its P&L
// before fees.
func (e *Engine) ClosePosition(positionID string, exitPrice float64) (float64, error) {
	if err := checkExitPrice(exitPrice); err != nil {
		return 0, err
	}
	i := slices.IndexFunc(e.positions, func(p Position) bool { return p.ID == positionID })
	if i < 0 {
		return 0, fmt.Errorf("close position %s: %w", positionID, ErrPositionNotFound)
	}
	pnl, err := e.closePosition(e.positions[i], exitPrice, ExitManual)
	if err != nil {
		return 0, err
	}
	e.positions = slices.Delete(e.positions, i, i+1)
	return pnl, nil
}

// CloseAllPositions closes every open position at exitPrice.
func (e *Engine) CloseAllPositions(exitPrice float64) error {
	if err := checkExitPrice(exitPrice); err != nil {
		return err
	}
	for len(e.positions) > 0 {
		if _, err := e.closePosition(e.positions[0], exitPrice, ExitManual); err != nil {
			return err
		}
		e.positions = slices.Delete(e.positions, 0, 1)
	}
	return nil
}

func checkExitPrice(price float64) error {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: %v", ErrExitPrice, price)
	}
	return nil
}

// Run replays every candle through fn. The first error stops the run and
// is returned with the tick index; state is left as it was at that tick.
func (e *Engine) Run(fn StrategyFunc) error {
	return e.loop(func(c market.Candle) error { return fn(e, c) })
}

// RunWithAggregator is Run with multi-resolution frames. Aggregation
// advances once per base candle, before fn.
func (e *Engine) RunWithAggregator(agg Aggregation, fn FrameFunc) error {
	a, err := newAggregator(agg)
	if err != nil {
		return err
	}
	return e.loop(func(c market.Candle) error {
		frame, err := a.advance(c)
		if err != nil {
			return err
		}
		return fn(e, frame)
	})
}

func (e *Engine) loop(step func(market.Candle) error) error {
	switch e.state {
	case Running:
		return ErrEngineRunning
	case Finished:
		return ErrEngineFinished
	}
	e.state = Running
	defer func() { e.state = Finished }()

	for ; e.cursor < len(e.candles); e.cursor++ {
		c := e.candles[e.cursor]
		if err := step(c); err != nil {
			return fmt.Errorf("tick %d: %w", e.cursor, err)
		}
		if err := e.executeOrders(c); err != nil {
			return fmt.Errorf("tick %d: %w", e.cursor, err)
		}
		if err := e.executePositions(c); err != nil {
			return fmt.Errorf("tick %d: %w", e.cursor, err)
		}
	}
	return nil
}

// Reset restores the engine to its state right after New. It is ignored
// while a run is in progress. Replaying the same strategy afterwards
// reproduces the event log up to generated order IDs.
func (e *Engine) Reset() {
	if e.state == Running {
		e.log.Warn("reset ignored while running")
		return
	}
	e.wallet.reset()
	e.orders = nil
	e.positions = nil
	e.closed = nil
	e.events = nil
	e.cursor = 0
	e.state = Idle
}

// executeOrders fills pending orders whose entry price traded within c.
// Market orders that missed are cancelled, limit orders wait.
func (e *Engine) executeOrders(c market.Candle) error {
	pending := e.orders
	e.orders = make([]Order, 0, len(pending))
	for i, o := range pending {
		var err error
		switch {
		case c.Contains(o.EntryPrice()):
			err = e.openPosition(o)
		case o.IsMarket():
			err = e.cancelOrder(o)
		default:
			e.orders = append(e.orders, o)
		}
		if err != nil {
			e.orders = append(e.orders, pending[i:]...)
			return err
		}
	}
	e.settleLocked()
	return nil
}

// settleLocked clears rounding residue from the reservation once the
// pending set is empty.
func (e *Engine) settleLocked() {
	if len(e.orders) == 0 {
		e.wallet.clearLocked()
	}
}

// executePositions applies exit rules, then marks what is left at c's close.
func (e *Engine) executePositions(c market.Candle) error {
	open := e.positions
	e.positions = make([]Position, 0, len(open))
	for i := range open {
		p := open[i]
		price, reason, ok, err := exitLevel(&p, c)
		if err == nil && ok {
			_, err = e.closePosition(p, price, reason)
		}
		if err != nil {
			e.positions = append(e.positions, open[i:]...)
			return fmt.Errorf("position %s: %w", p.ID, err)
		}
		if !ok {
			e.positions = append(e.positions, p)
		}
	}

	var pnl float64
	for i := range e.positions {
		u, err := e.positions[i].EstimatePnL(c.Close())
		if err != nil {
			return err
		}
		e.positions[i].UnrealizedPnL = u
		pnl += u
	}
	e.wallet.setUnrealizedPnL(pnl)
	return nil
}

func (e *Engine) fee(o Order) float64 {
	if e.fees == nil {
		return 0
	}
	if o.IsMarket() {
		return o.Cost() * e.fees.Market
	}
	return o.Cost() * e.fees.Limit
}

func (e *Engine) openPosition(o Order) error {
	cost, fee := o.Cost(), e.fee(o)
	// sub leaves the free balance unchanged, so the fee must fit now.
	if free := e.wallet.free(); fee > free {
		return fmt.Errorf("fill order %s: fee: %w: required %v, available %v", o.ID, ErrInsufficientFunds, fee, free)
	}
	if _, err := e.wallet.sub(cost); err != nil {
		return fmt.Errorf("fill order %s: %w", o.ID, err)
	}
	if fee > 0 {
		if _, err := e.wallet.subFees(fee); err != nil {
			return fmt.Errorf("fill order %s: %w", o.ID, err)
		}
	}

	p := newPosition(o, e.now())
	e.positions = append(e.positions, p)
	e.emitWallet()
	e.emitPosition(AddPosition, p)
	e.log.Debug("order filled",
		zap.String("order_id", o.ID),
		zap.Stringer("side", p.Side),
		zap.Float64("price", o.EntryPrice()),
		zap.Float64("fee", fee))
	return nil
}

func (e *Engine) cancelOrder(o Order) error {
	if err := e.wallet.unlock(o.Cost()); err != nil {
		return fmt.Errorf("cancel order %s: %w", o.ID, err)
	}
	e.emitWallet()
	e.emitOrder(DelOrder, o)
	e.log.Debug("order cancelled", zap.String("order_id", o.ID), zap.Float64("price", o.EntryPrice()))
	return nil
}

// closePosition settles p at price. The caller removes p from the open set.
func (e *Engine) closePosition(p Position, price float64, reason ExitReason) (float64, error) {
	pnl, err := p.EstimatePnL(price)
	if err != nil {
		return 0, err
	}
	credit, fee := pnl+p.Cost(), e.fee(p.Order)
	if free := e.wallet.free(); free+credit < fee {
		return 0, fmt.Errorf("close position %s: %w: free %v, credit %v, fee %v",
			p.ID, ErrInsufficientFunds, free, credit, fee)
	}
	if _, err := e.wallet.add(credit); err != nil {
		return 0, fmt.Errorf("close position %s: %w", p.ID, err)
	}
	e.wallet.subPnL(p.UnrealizedPnL)
	if fee > 0 {
		if _, err := e.wallet.subFees(fee); err != nil {
			return 0, fmt.Errorf("close position %s: %w", p.ID, err)
		}
	}

	p.Order = p.Order.clone()
	p.ExitPrice = price
	p.ExitReason = reason
	p.ClosedAt = e.now()
	p.UnrealizedPnL = 0
	e.closed = append(e.closed, p)
	e.emitWallet()
	e.emitPosition(DelPosition, p)
	e.log.Debug("position closed",
		zap.String("order_id", p.ID),
		zap.String("reason", string(reason)),
		zap.Float64("price", price),
		zap.Float64("pnl", pnl))
	return pnl, nil
}

// now is the timestamp for events: the close of the current candle.
func (e *Engine) now() time.Time {
	i := min(e.cursor, len(e.candles)-1)
	return e.candles[i].CloseTime()
}

func (e *Engine) emitWallet() {
	s := e.wallet.snapshot()
	e.events = append(e.events, Event{Kind: WalletUpdate, Time: e.now(), Wallet: &s})
}

func (e *Engine) emitOrder(kind EventKind, o Order) {
	o = o.clone()
	e.events = append(e.events, Event{Kind: kind, Time: e.now(), Order: &o})
}

func (e *Engine) emitPosition(kind EventKind, p Position) {
	p.Order = p.Order.clone()
	e.events = append(e.events, Event{Kind: kind, Time: e.now(), Position: &p})
}
