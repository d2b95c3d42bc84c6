package engine

import (
	"escrow-ledger/events"
	"escrow-ledger/repository"
)

// Owner governance operations. These stay available while the engine is
// paused so a paused deployment can still be administered.

// AddAdmin appends an address to the dispute-voting roster.
func (e *Engine) AddAdmin(caller, address string) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if address == "" {
		return Validationf("admin address is required")
	}

	roster, err := e.roster()
	if err != nil {
		return err
	}
	if roster.Contains(address) {
		return Statef("address is already an admin")
	}
	roster.Admins = append(roster.Admins, address)

	if err := e.repo.Apply(&repository.ChangeSet{Roster: roster}); err != nil {
		return err
	}
	e.emit(events.TypeAdminAdded, map[string]interface{}{"address": address})
	return nil
}

// RemoveAdmin drops a roster member by swapping with the last entry and
// truncating, so enumeration order changes across removals. The roster
// never goes empty.
func (e *Engine) RemoveAdmin(caller, address string) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.requireOwner(caller); err != nil {
		return err
	}

	roster, err := e.roster()
	if err != nil {
		return err
	}
	if !roster.Contains(address) {
		return Statef("address is not an admin")
	}
	if len(roster.Admins) == 1 {
		return Statef("cannot remove the last admin")
	}
	roster.Remove(address)

	if err := e.repo.Apply(&repository.ChangeSet{Roster: roster}); err != nil {
		return err
	}
	e.emit(events.TypeAdminRemoved, map[string]interface{}{"address": address})
	return nil
}

// GetAdminList returns the roster in its current enumeration order.
func (e *Engine) GetAdminList() ([]string, error) {
	roster, err := e.roster()
	if err != nil {
		return nil, err
	}
	return roster.Admins, nil
}

// Pause trips the circuit breaker: every mutating operation except the
// owner governance ones is rejected until Unpause.
func (e *Engine) Pause(caller string) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.requireOwner(caller); err != nil {
		return err
	}

	s, err := e.settings()
	if err != nil {
		return err
	}
	if s.Paused {
		return Statef("engine is already paused")
	}
	s.Paused = true

	if err := e.repo.Apply(&repository.ChangeSet{Settings: s}); err != nil {
		return err
	}
	e.emit(events.TypeContractPaused, nil)
	return nil
}

// Unpause reopens the engine for mutating operations.
func (e *Engine) Unpause(caller string) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.requireOwner(caller); err != nil {
		return err
	}

	s, err := e.settings()
	if err != nil {
		return err
	}
	if !s.Paused {
		return Statef("engine is not paused")
	}
	s.Paused = false

	if err := e.repo.Apply(&repository.ChangeSet{Settings: s}); err != nil {
		return err
	}
	e.emit(events.TypeContractUnpaused, nil)
	return nil
}
