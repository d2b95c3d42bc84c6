package treasury

import (
	"sync"

	"escrow-ledger/logger"

	"go.uber.org/zap"
)

// Transferer moves value out of escrow to an external address. It is
// the interaction boundary of every operation: the engine commits its
// state first, then calls Transfer while still holding its operation
// lock, so an implementation that calls back into the engine is
// rejected instead of observing pre-transfer state.
type Transferer interface {
	Transfer(to string, amount uint64) error
}

// Recorder is a Transferer that tallies outbound transfers per address.
// It stands in for the real payment rail and doubles as a ledger of
// what left escrow.
type Recorder struct {
	mu     sync.Mutex
	totals map[string]uint64
}

func NewRecorder() *Recorder {
	return &Recorder{totals: make(map[string]uint64)}
}

// Transfer records the payout and logs it.
func (r *Recorder) Transfer(to string, amount uint64) error {
	r.mu.Lock()
	r.totals[to] += amount
	r.mu.Unlock()

	logger.Logger.Info("Transferred funds",
		zap.String("to", to),
		zap.Uint64("amount", amount))
	return nil
}

// Total returns the cumulative amount transferred to an address.
func (r *Recorder) Total(address string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totals[address]
}
