package engine

import (
	"time"

	"escrow-ledger/events"
	"escrow-ledger/logger"
	"escrow-ledger/models"
	"escrow-ledger/repository"
	"escrow-ledger/treasury"

	"go.uber.org/zap"
)

const (
	// DisputeWindowSeconds is how long after submission a participant
	// may contest a milestone.
	DisputeWindowSeconds int64 = 3 * 24 * 60 * 60

	// AutoApproveWindowSeconds is how long after submission anyone may
	// force-release an unactioned milestone.
	AutoApproveWindowSeconds int64 = 7 * 24 * 60 * 60

	// DisputeQuorum is the number of distinct admin votes that triggers
	// resolution.
	DisputeQuorum = 2

	// MaxFeePercent bounds the platform fee schedule.
	MaxFeePercent uint64 = 10
)

// Sequence counter names. Ids are never reused, even after cancellation.
const (
	projectSeq = "project"
	disputeSeq = "dispute"
)

// Engine is the escrow state machine. It custodies deposited funds per
// project, releases them against approved milestones and arbitrates
// disagreements through admin quorum votes. Every mutating operation
// runs under a single operation lock, commits its state changes as one
// atomic change set, and only then issues outbound transfers.
type Engine struct {
	repo     repository.EscrowRepositoryInterface
	treasury treasury.Transferer
	bus      *events.Bus
	guard    opGuard
	owner    string
	clock    func() time.Time
}

// NewEngine wires the engine and seeds the admin roster (owner first)
// and settings on first boot.
func NewEngine(repo repository.EscrowRepositoryInterface, t treasury.Transferer, bus *events.Bus, owner string, defaultFeePercent uint64) (*Engine, error) {
	if owner == "" {
		return nil, Validationf("owner address is required")
	}
	if defaultFeePercent > MaxFeePercent {
		return nil, Validationf("fee percent must not exceed %d", MaxFeePercent)
	}

	e := &Engine{
		repo:     repo,
		treasury: t,
		bus:      bus,
		owner:    owner,
		clock:    time.Now,
	}

	cs := &repository.ChangeSet{}
	roster, err := repo.GetRoster()
	if err != nil {
		return nil, err
	}
	if roster == nil {
		cs.Roster = &models.AdminRoster{Admins: []string{owner}}
	}
	settings, err := repo.GetSettings()
	if err != nil {
		return nil, err
	}
	if settings == nil {
		cs.Settings = &models.Settings{FeePercent: defaultFeePercent}
	}
	if cs.Roster != nil || cs.Settings != nil {
		if err := repo.Apply(cs); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SetClock overrides the engine time source. Time-gated checks are
// evaluated once per operation against this clock.
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

// Owner returns the owning address that governs roster, fee and pause.
func (e *Engine) Owner() string {
	return e.owner
}

func (e *Engine) now() int64 {
	return e.clock().Unix()
}

func (e *Engine) settings() (*models.Settings, error) {
	s, err := e.repo.GetSettings()
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = &models.Settings{}
	}
	return s, nil
}

func (e *Engine) roster() (*models.AdminRoster, error) {
	r, err := e.repo.GetRoster()
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = &models.AdminRoster{Admins: []string{e.owner}}
	}
	return r, nil
}

// requireNotPaused gates every mutating operation except the owner
// governance ones (pause, unpause, add/remove admin).
func (e *Engine) requireNotPaused() error {
	s, err := e.settings()
	if err != nil {
		return err
	}
	if s.Paused {
		return Unavailablef("engine is paused")
	}
	return nil
}

func (e *Engine) requireOwner(caller string) error {
	if caller != e.owner {
		return Authorizationf("only the owner can perform this operation")
	}
	return nil
}

// requireAdmin accepts roster members and the owner.
func (e *Engine) requireAdmin(caller string) error {
	if caller == e.owner {
		return nil
	}
	r, err := e.roster()
	if err != nil {
		return err
	}
	if !r.Contains(caller) {
		return Authorizationf("only an admin can perform this operation")
	}
	return nil
}

func (e *Engine) getProject(id uint64) (*models.Project, error) {
	p, err := e.repo.GetProject(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, Validationf("project %d does not exist", id)
	}
	return p, nil
}

// emit publishes a notification. Called only after the state commit,
// so subscribers never observe uncommitted effects.
func (e *Engine) emit(eventType string, fields map[string]interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.New(eventType, e.now(), fields))
}

// payout issues an outbound transfer. State is already committed at
// this point; a transfer failure cannot roll it back, so it is logged
// for the payment rail to reconcile. The operation lock is still held,
// which makes a re-entrant call from the transfer target fail instead
// of observing mid-operation state.
func (e *Engine) payout(to string, amount uint64) {
	if to == "" || amount == 0 {
		return
	}
	if err := e.treasury.Transfer(to, amount); err != nil {
		logger.Logger.Error("Outbound transfer failed",
			zap.String("to", to),
			zap.Uint64("amount", amount),
			zap.Error(err))
	}
}
