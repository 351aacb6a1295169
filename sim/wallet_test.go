package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWallet(t *testing.T) {
	t.Parallel()

	for _, bal := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := NewWallet(bal)
		assert.ErrorIs(t, err, ErrNonPositiveBalance, "balance %v", bal)
	}

	w, err := NewWallet(1000)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, w.InitialBalance())
	assert.Equal(t, 1000.0, w.Balance())
	assert.Equal(t, 1000.0, w.TotalBalance())
	free, err := w.FreeBalance()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, free)
}

func TestWalletLockUnlock(t *testing.T) {
	t.Parallel()

	w, err := NewWallet(1000)
	require.NoError(t, err)

	assert.ErrorIs(t, w.lock(0), ErrNonPositiveAmount)
	assert.ErrorIs(t, w.lock(-5), ErrNonPositiveAmount)
	assert.ErrorIs(t, w.lock(1000.01), ErrInsufficientFunds)
	assert.Equal(t, 0.0, w.Locked())

	require.NoError(t, w.lock(400))
	require.NoError(t, w.lock(600))
	assert.ErrorIs(t, w.lock(1), ErrInsufficientFunds)

	assert.ErrorIs(t, w.unlock(1001), ErrUnlockUnderflow)
	assert.ErrorIs(t, w.unlock(0), ErrNonPositiveAmount)
	require.NoError(t, w.unlock(600))
	assert.Equal(t, 400.0, w.Locked())
	assert.Equal(t, 1000.0, w.Balance())
}

func TestWalletSubAdd(t *testing.T) {
	t.Parallel()

	w, err := NewWallet(1000)
	require.NoError(t, err)
	require.NoError(t, w.lock(100))

	_, err = w.sub(101)
	assert.ErrorIs(t, err, ErrUnlockUnderflow)

	free, err := w.sub(100)
	require.NoError(t, err)
	assert.Equal(t, 900.0, free)
	assert.Equal(t, 900.0, w.Balance())
	assert.Equal(t, 0.0, w.Locked())

	free, err = w.add(120)
	require.NoError(t, err)
	assert.Equal(t, 1020.0, free)

	// a loss larger than the free balance is refused untouched
	require.NoError(t, w.lock(1000))
	_, err = w.add(-21)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 1020.0, w.Balance())
}

func TestWalletFees(t *testing.T) {
	t.Parallel()

	w, err := NewWallet(100)
	require.NoError(t, err)

	_, err = w.subFees(-1)
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
	_, err = w.subFees(100.5)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 0.0, w.FeesPaid())

	_, err = w.subFees(2.5)
	require.NoError(t, err)
	_, err = w.subFees(0.5)
	require.NoError(t, err)
	assert.Equal(t, 3.0, w.FeesPaid())
	assert.Equal(t, 97.0, w.Balance())
}

func TestWalletPnLAndReset(t *testing.T) {
	t.Parallel()

	w, err := NewWallet(1000)
	require.NoError(t, err)
	require.NoError(t, w.lock(300))
	_, err = w.sub(200)
	require.NoError(t, err)
	_, err = w.subFees(1)
	require.NoError(t, err)

	w.setUnrealizedPnL(15)
	assert.Equal(t, 814.0, w.TotalBalance())
	w.subPnL(10)
	assert.Equal(t, 5.0, w.UnrealizedPnL())

	s := w.snapshot()
	assert.Equal(t, WalletSnapshot{Balance: 799, Locked: 100, Free: 699, UnrealizedPnL: 5, Fees: 1}, s)
	assert.Equal(t, 804.0, s.Total())

	w.reset()
	assert.Equal(t, WalletSnapshot{Balance: 1000, Free: 1000}, w.snapshot())
}

// Any sequence of ledger operations either succeeds with free >= 0 and
// locked >= 0, or fails without changing the wallet.
func TestWalletInvariantRandomOps(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		w, err := NewWallet(1000)
		require.NoError(t, err)

		prevFees := 0.0
		for step := 0; step < 500; step++ {
			before := w.snapshot()
			amount := rng.Float64()*600 - 100

			var opErr error
			switch rng.Intn(5) {
			case 0:
				opErr = w.lock(amount)
			case 1:
				opErr = w.unlock(amount)
			case 2:
				_, opErr = w.sub(amount)
			case 3:
				_, opErr = w.add(amount)
			case 4:
				_, opErr = w.subFees(amount / 10)
			}

			if opErr != nil {
				require.Equal(t, before, w.snapshot(), "round %d step %d: failed op mutated wallet", round, step)
			}
			free, err := w.FreeBalance()
			require.NoError(t, err)
			require.GreaterOrEqual(t, free, 0.0)
			require.GreaterOrEqual(t, w.Locked(), 0.0)
			require.GreaterOrEqual(t, w.FeesPaid(), prevFees)
			prevFees = w.FeesPaid()
		}
	}
}

// Reservations released with the exact amounts they were locked with always
// succeed, whatever order they come back in.
func TestWalletReleasesExactReservations(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		w, err := NewWallet(1000)
		require.NoError(t, err)

		var held []float64
		for i := 0; i < 2+rng.Intn(8); i++ {
			amount := float64(1+rng.Intn(99999)) / 100
			if w.lock(amount) == nil {
				held = append(held, amount)
			}
		}
		rng.Shuffle(len(held), func(i, j int) { held[i], held[j] = held[j], held[i] })

		for i, amount := range held {
			if rng.Intn(2) == 0 {
				require.NoError(t, w.unlock(amount), "round %d release %d", round, i)
			} else {
				_, err := w.sub(amount)
				require.NoError(t, err, "round %d release %d", round, i)
			}
			free, err := w.FreeBalance()
			require.NoError(t, err)
			require.GreaterOrEqual(t, free, 0.0)
			require.GreaterOrEqual(t, w.Locked(), 0.0)
		}
		assert.InDelta(t, 0.0, w.Locked(), 1e-9, "round %d", round)
	}
}

func TestWalletLockDrift(t *testing.T) {
	t.Parallel()

	w, err := NewWallet(1000)
	require.NoError(t, err)
	require.NoError(t, w.lock(0.7))
	require.NoError(t, w.lock(0.1))
	require.NoError(t, w.unlock(0.7))
	// 0.7 + 0.1 - 0.7 leaves a hair under 0.1
	require.NoError(t, w.unlock(0.1))
	assert.Equal(t, 0.0, w.Locked())

	assert.ErrorIs(t, w.unlock(0.1), ErrUnlockUnderflow)
}
