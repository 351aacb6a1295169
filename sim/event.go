package sim

import (
	"fmt"
	"time"
)

// EventKind tags an entry of the engine's event log.
type EventKind int8

const (
	AddOrder EventKind = iota + 1
	DelOrder
	AddPosition
	DelPosition
	WalletUpdate
)

func (k EventKind) String() string {
	switch k {
	case AddOrder:
		return "AddOrder"
	case DelOrder:
		return "DelOrder"
	case AddPosition:
		return "AddPosition"
	case DelPosition:
		return "DelPosition"
	case WalletUpdate:
		return "WalletUpdate"
	}
	return fmt.Sprintf("EventKind(%d)", int8(k))
}

// Event is one entry of the append-only log. Exactly one of Order,
// Position or Wallet is set, matching Kind. Time is the close time of the
// candle being processed when the event was emitted.
type Event struct {
	Kind     EventKind
	Time     time.Time
	Order    *Order
	Position *Position
	Wallet   *WalletSnapshot
}

func (e Event) String() string {
	switch e.Kind {
	case AddOrder, DelOrder:
		return fmt.Sprintf("%s %s %s", e.Time.Format(time.RFC3339), e.Kind, e.Order)
	case AddPosition, DelPosition:
		return fmt.Sprintf("%s %s %s", e.Time.Format(time.RFC3339), e.Kind, e.Position)
	case WalletUpdate:
		w := e.Wallet
		return fmt.Sprintf("%s %s balance=%v locked=%v free=%v pnl=%v fees=%v",
			e.Time.Format(time.RFC3339), e.Kind, w.Balance, w.Locked, w.Free, w.UnrealizedPnL, w.Fees)
	}
	return e.Kind.String()
}
