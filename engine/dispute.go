package engine

import (
	"escrow-ledger/events"
	"escrow-ledger/models"
	"escrow-ledger/repository"
)

// RaiseDispute contests a submitted milestone. Only a participant may
// raise it, and only inside the dispute window. Both the project and
// the milestone move to DISPUTED, which is what guarantees at most one
// unresolved dispute per milestone.
func (e *Engine) RaiseDispute(caller string, projectID uint64, milestoneID int, reason string) (uint64, error) {
	if err := e.guard.enter(); err != nil {
		return 0, err
	}
	defer e.guard.exit()
	if err := e.requireNotPaused(); err != nil {
		return 0, err
	}

	p, err := e.getProject(projectID)
	if err != nil {
		return 0, err
	}
	if caller == "" || (caller != p.Payer && caller != p.Payee) {
		return 0, Authorizationf("only a project participant can raise a dispute")
	}
	if p.Status != models.ProjectStatusActive {
		return 0, Statef("project is not active")
	}
	m := p.Milestone(milestoneID)
	if m == nil {
		return 0, Validationf("milestone %d does not exist", milestoneID)
	}
	if m.Status != models.MilestoneStatusSubmitted {
		return 0, Statef("milestone is not submitted")
	}
	now := e.now()
	if !withinDisputeWindow(m, now) {
		return 0, Timeoutf("dispute window has elapsed")
	}

	id, err := e.repo.GetCounter(disputeSeq)
	if err != nil {
		return 0, err
	}

	dispute := &models.Dispute{
		ID:          id,
		ProjectID:   projectID,
		MilestoneID: milestoneID,
		Initiator:   caller,
		Reason:      reason,
		CreatedAt:   now,
	}
	p.Status = models.ProjectStatusDisputed
	m.Status = models.MilestoneStatusDisputed

	cs := &repository.ChangeSet{}
	cs.PutProject(p)
	cs.PutDispute(dispute)
	cs.SetCounter(disputeSeq, id+1)
	if err := e.repo.Apply(cs); err != nil {
		return 0, err
	}

	e.emit(events.TypeDisputeRaised, map[string]interface{}{
		"dispute_id":   id,
		"project_id":   projectID,
		"milestone_id": milestoneID,
		"initiator":    caller,
	})
	return id, nil
}

// VoteOnDispute records one admin's payout split. One vote per admin;
// when the quorum is reached the resolution fires synchronously inside
// the same operation. Once resolved, further votes are rejected, which
// is what makes resolution fire exactly once.
func (e *Engine) VoteOnDispute(caller string, disputeID uint64, percentageToPayee uint64) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.requireNotPaused(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}

	d, err := e.repo.GetDispute(disputeID)
	if err != nil {
		return err
	}
	if d == nil {
		return Validationf("dispute %d does not exist", disputeID)
	}
	if d.Resolved {
		return Statef("dispute has already been resolved")
	}
	if percentageToPayee > 100 {
		return Validationf("percentage must be between 0 and 100")
	}
	if d.HasVoted(caller) {
		return Statef("admin has already voted on this dispute")
	}

	d.Votes = append(d.Votes, models.Vote{Admin: caller, Percentage: percentageToPayee})

	if len(d.Votes) < DisputeQuorum {
		if err := e.repo.Apply(&repository.ChangeSet{Disputes: []*models.Dispute{d}}); err != nil {
			return err
		}
		e.emit(events.TypeDisputeVoted, map[string]interface{}{
			"dispute_id": disputeID,
			"admin":      caller,
			"percentage": percentageToPayee,
		})
		return nil
	}

	return e.resolveDispute(d, caller, percentageToPayee)
}

// resolveDispute averages the submitted percentages over the current
// roster order and splits the milestone amount between payee and payer.
// No platform fee is taken on dispute resolutions. The resolved flag is
// set before any transfer goes out.
func (e *Engine) resolveDispute(d *models.Dispute, voter string, votePercentage uint64) error {
	p, err := e.getProject(d.ProjectID)
	if err != nil {
		return err
	}
	m := p.Milestone(d.MilestoneID)
	if m == nil {
		return Validationf("milestone %d does not exist", d.MilestoneID)
	}

	roster, err := e.roster()
	if err != nil {
		return err
	}
	var sum, voters uint64
	for _, admin := range roster.Admins {
		if v, ok := d.VoteOf(admin); ok {
			sum += v.Percentage
			voters++
		}
	}
	// a voter may no longer be on the roster; with no roster voters
	// left the whole amount goes back to the payer
	var avg uint64
	if voters > 0 {
		avg = sum / voters
	}

	payeeAmount := percentOf(m.Amount, avg)
	payerAmount := m.Amount - payeeAmount

	d.Resolved = true
	m.Status = models.MilestoneStatusApproved
	// resolution returns the project to ACTIVE without re-checking
	// completion, even when this was the last pending milestone
	p.Status = models.ProjectStatusActive
	p.ReleasedAmount += m.Amount

	cs := &repository.ChangeSet{}
	cs.PutProject(p)
	cs.PutDispute(d)
	if err := e.repo.Apply(cs); err != nil {
		return err
	}

	e.emit(events.TypeDisputeVoted, map[string]interface{}{
		"dispute_id": d.ID,
		"admin":      voter,
		"percentage": votePercentage,
	})
	e.emit(events.TypeDisputeResolved, map[string]interface{}{
		"dispute_id":       d.ID,
		"project_id":       d.ProjectID,
		"milestone_id":     d.MilestoneID,
		"payee_percentage": avg,
		"payee_amount":     payeeAmount,
		"payer_amount":     payerAmount,
	})

	e.payout(p.Payee, payeeAmount)
	e.payout(p.Payer, payerAmount)
	return nil
}

// GetDisputeVotes returns the vote tally with voters and their
// percentages enumerated in current roster order. Votes of admins who
// have since left the roster are excluded from the listing.
func (e *Engine) GetDisputeVotes(disputeID uint64) (int, bool, []string, []uint64, error) {
	d, err := e.repo.GetDispute(disputeID)
	if err != nil {
		return 0, false, nil, nil, err
	}
	if d == nil {
		return 0, false, nil, nil, Validationf("dispute %d does not exist", disputeID)
	}
	roster, err := e.roster()
	if err != nil {
		return 0, false, nil, nil, err
	}

	var voters []string
	var percentages []uint64
	for _, admin := range roster.Admins {
		if v, ok := d.VoteOf(admin); ok {
			voters = append(voters, admin)
			percentages = append(percentages, v.Percentage)
		}
	}
	return len(d.Votes), d.Resolved, voters, percentages, nil
}
