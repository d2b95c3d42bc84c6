package engine

import (
	"escrow-ledger/events"
	"escrow-ledger/models"
	"escrow-ledger/repository"
)

// ApproveMilestone is the payer's manual release of a submitted
// milestone. The payout is split between the payee and the platform fee.
func (e *Engine) ApproveMilestone(caller string, projectID uint64, milestoneID int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.requireNotPaused(); err != nil {
		return err
	}

	p, err := e.getProject(projectID)
	if err != nil {
		return err
	}
	if caller != p.Payer {
		return Authorizationf("only the payer can approve a milestone")
	}
	if p.Status != models.ProjectStatusActive {
		return Statef("project is not active")
	}
	m := p.Milestone(milestoneID)
	if m == nil {
		return Validationf("milestone %d does not exist", milestoneID)
	}
	if m.Status != models.MilestoneStatusSubmitted {
		return Statef("milestone is not submitted")
	}

	return e.release(p, milestoneID, false)
}

// percentOf computes amount*percent/100 with the same floor rounding as
// the direct expression, without wrapping on amounts where the product
// exceeds uint64 range.
func percentOf(amount, percent uint64) uint64 {
	return amount/100*percent + amount%100*percent/100
}

// release is the single choke point for fee-charged fund release, used
// by both manual and automatic approval. The APPROVED transition is
// one-way, which is what prevents a second release of the same
// milestone. State is committed before any transfer goes out.
func (e *Engine) release(p *models.Project, milestoneID int, auto bool) error {
	s, err := e.settings()
	if err != nil {
		return err
	}
	m := p.Milestone(milestoneID)

	fee := percentOf(m.Amount, s.FeePercent)
	payeeAmount := m.Amount - fee

	m.Status = models.MilestoneStatusApproved
	p.ReleasedAmount += m.Amount
	if p.AllMilestonesApproved() {
		p.Status = models.ProjectStatusCompleted
	}

	cs := &repository.ChangeSet{}
	cs.PutProject(p)
	if err := e.repo.Apply(cs); err != nil {
		return err
	}

	if auto {
		e.emit(events.TypeMilestoneAutoApproved, map[string]interface{}{
			"project_id":   p.ID,
			"milestone_id": milestoneID,
		})
	}
	e.emit(events.TypeMilestoneApproved, map[string]interface{}{
		"project_id":   p.ID,
		"milestone_id": milestoneID,
	})
	e.emit(events.TypePaymentReleased, map[string]interface{}{
		"project_id":   p.ID,
		"milestone_id": milestoneID,
		"payee":        p.Payee,
		"amount":       payeeAmount,
		"fee":          fee,
	})

	e.payout(p.Payee, payeeAmount)
	e.payout(e.owner, fee)
	return nil
}

// SetPlatformFee updates the fee percentage charged on approved
// milestone payouts. Owner-only, capped at MaxFeePercent.
func (e *Engine) SetPlatformFee(caller string, percent uint64) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.requireNotPaused(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if percent > MaxFeePercent {
		return Validationf("fee percent must not exceed %d", MaxFeePercent)
	}

	s, err := e.settings()
	if err != nil {
		return err
	}
	s.FeePercent = percent

	return e.repo.Apply(&repository.ChangeSet{Settings: s})
}

// GetContractBalance returns the total value currently held in escrow,
// the sum of deposited-but-unreleased amounts across all projects.
func (e *Engine) GetContractBalance() (uint64, error) {
	projects, err := e.repo.GetAllProjects()
	if err != nil {
		return 0, err
	}
	var balance uint64
	for _, p := range projects {
		if p.FundsDeposited {
			balance += p.HeldAmount()
		}
	}
	return balance, nil
}
