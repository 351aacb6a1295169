package sim

import (
	"fmt"
	"math"
)

// Wallet is the account ledger of one engine. Every mutator checks its
// preconditions before touching state, so a failed call leaves the wallet as
// it was and balance - locked never goes negative.
//
// Mutators are package private: only the Engine moves money.
type Wallet struct {
	initialBalance float64
	balance        float64
	locked         float64
	unrealizedPnL  float64
	fees           float64
}

// NewWallet returns a wallet funded with balance.
func NewWallet(balance float64) (*Wallet, error) {
	if balance <= 0 || math.IsNaN(balance) || math.IsInf(balance, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrNonPositiveBalance, balance)
	}
	return &Wallet{initialBalance: balance, balance: balance}, nil
}

func (w *Wallet) InitialBalance() float64 { return w.initialBalance }
func (w *Wallet) Balance() float64        { return w.balance }
func (w *Wallet) Locked() float64         { return w.locked }
func (w *Wallet) UnrealizedPnL() float64  { return w.unrealizedPnL }
func (w *Wallet) FeesPaid() float64       { return w.fees }

// TotalBalance is the balance marked to market.
func (w *Wallet) TotalBalance() float64 { return w.balance + w.unrealizedPnL }

// FreeBalance is what is left to lock for new orders.
func (w *Wallet) FreeBalance() (float64, error) {
	if w.balance-w.locked < -lockTolerance(w.locked) {
		return 0, fmt.Errorf("%w: balance=%v, locked=%v", ErrNegativeFreeBalance, w.balance, w.locked)
	}
	return w.free(), nil
}

// lockTolerance is the rounding residue accepted between locked and the
// sum of the reservations it was built from.
func lockTolerance(locked float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(locked))
}

// free is balance - locked with rounding residue below zero clamped away.
func (w *Wallet) free() float64 {
	return math.Max(0, w.balance-w.locked)
}

// release drops amount from locked. locked is a running float sum, so the
// last reservation out may find a hair less than its exact cost.
func (w *Wallet) release(op string, amount float64) error {
	if amount > w.locked+lockTolerance(w.locked) {
		return fmt.Errorf("%s: %w: locked %v, requested %v", op, ErrUnlockUnderflow, w.locked, amount)
	}
	w.locked = math.Max(0, w.locked-amount)
	return nil
}

// clearLocked zeroes the reservation once no order holds funds.
func (w *Wallet) clearLocked() { w.locked = 0 }

// lock reserves amount of the free balance for a pending order.
func (w *Wallet) lock(amount float64) error {
	if amount <= 0 || math.IsNaN(amount) {
		return fmt.Errorf("lock: %w: got %v", ErrNonPositiveAmount, amount)
	}
	free, err := w.FreeBalance()
	if err != nil {
		return err
	}
	if amount > free+lockTolerance(w.locked) {
		return fmt.Errorf("lock: %w: required %v, available %v", ErrInsufficientFunds, amount, free)
	}
	w.locked += amount
	return nil
}

// unlock releases funds reserved by lock.
func (w *Wallet) unlock(amount float64) error {
	if amount <= 0 || math.IsNaN(amount) {
		return fmt.Errorf("unlock: %w: got %v", ErrNonPositiveAmount, amount)
	}
	return w.release("unlock", amount)
}

// sub realizes a debit that was previously locked: the money leaves the
// balance and the matching reservation is released.
func (w *Wallet) sub(amount float64) (float64, error) {
	if amount <= 0 || math.IsNaN(amount) {
		return 0, fmt.Errorf("sub: %w: got %v", ErrNonPositiveAmount, amount)
	}
	if err := w.release("sub", amount); err != nil {
		return 0, err
	}
	w.balance -= amount
	return w.FreeBalance()
}

// add credits amount. A negative amount (a loss bigger than the position
// cost) is accepted as long as it does not eat into locked funds.
func (w *Wallet) add(amount float64) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("add: %w: got %v", ErrNonPositiveAmount, amount)
	}
	if free := w.free(); free+amount < 0 {
		return 0, fmt.Errorf("add: %w: debit %v, available %v", ErrInsufficientFunds, -amount, free)
	}
	w.balance += amount
	return w.FreeBalance()
}

// subFees charges a fee against the free balance.
func (w *Wallet) subFees(amount float64) (float64, error) {
	if amount < 0 || math.IsNaN(amount) {
		return 0, fmt.Errorf("fees: %w: got %v", ErrNonPositiveAmount, amount)
	}
	if free := w.free(); amount > free {
		return 0, fmt.Errorf("fees: %w: required %v, available %v", ErrInsufficientFunds, amount, free)
	}
	w.balance -= amount
	w.fees += amount
	return w.FreeBalance()
}

func (w *Wallet) setUnrealizedPnL(pnl float64) { w.unrealizedPnL = pnl }

// subPnL removes a closed position's share of the unrealized P&L.
func (w *Wallet) subPnL(pnl float64) { w.unrealizedPnL -= pnl }

func (w *Wallet) reset() {
	w.balance = w.initialBalance
	w.locked = 0
	w.unrealizedPnL = 0
	w.fees = 0
}

// WalletSnapshot is a copy of the ledger at one instant.
type WalletSnapshot struct {
	Balance       float64
	Locked        float64
	Free          float64
	UnrealizedPnL float64
	Fees          float64
}

// Total is the snapshot's marked-to-market balance.
func (s WalletSnapshot) Total() float64 { return s.Balance + s.UnrealizedPnL }

func (w *Wallet) snapshot() WalletSnapshot {
	return WalletSnapshot{
		Balance:       w.balance,
		Locked:        w.locked,
		Free:          w.free(),
		UnrealizedPnL: w.unrealizedPnL,
		Fees:          w.fees,
	}
}
