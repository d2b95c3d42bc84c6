package engine

import "escrow-ledger/models"

// Pure time predicates. Both are evaluated once per operation against
// the engine clock, never polled.

func withinDisputeWindow(m *models.Milestone, now int64) bool {
	return now <= m.SubmittedAt+DisputeWindowSeconds
}

func autoApproveEligible(m *models.Milestone, now int64) bool {
	return m.Status == models.MilestoneStatusSubmitted && now >= m.SubmittedAt+AutoApproveWindowSeconds
}

// CanAutoApprove reports whether the milestone could be force-released
// right now, along with the timestamp at which it becomes (or became)
// eligible. Zero eligibility time means the milestone was never
// submitted.
func (e *Engine) CanAutoApprove(projectID uint64, milestoneID int) (bool, int64, error) {
	p, err := e.getProject(projectID)
	if err != nil {
		return false, 0, err
	}
	m := p.Milestone(milestoneID)
	if m == nil {
		return false, 0, Validationf("milestone %d does not exist", milestoneID)
	}
	if m.SubmittedAt == 0 {
		return false, 0, nil
	}
	eligibleAt := m.SubmittedAt + AutoApproveWindowSeconds
	if p.Status != models.ProjectStatusActive {
		return false, eligibleAt, nil
	}
	return autoApproveEligible(m, e.now()), eligibleAt, nil
}

// AutoApproveMilestone force-releases a milestone that has sat
// submitted past the auto-approval window. It is deliberately callable
// by any address: a liveness mechanism against unresponsive payers.
// The payout split is identical to manual approval.
func (e *Engine) AutoApproveMilestone(caller string, projectID uint64, milestoneID int) error {
	_ = caller // unauthenticated by design

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
	if !autoApproveEligible(m, e.now()) {
		return Timeoutf("auto-approval window has not elapsed")
	}

	return e.release(p, milestoneID, true)
}
