package engine

import (
	"math"

	"escrow-ledger/events"
	"escrow-ledger/models"
	"escrow-ledger/repository"
)

// CreateProject validates the milestone plan, escrows the deposit and
// creates the project in CREATED state with all milestones PENDING.
// Any excess deposit beyond the milestone total is refunded to the
// caller. No partial state is created on failure.
func (e *Engine) CreateProject(caller, title, descriptionRef string, milestoneDescs []string, milestoneAmounts []uint64, milestoneDeadlines []int64, deposit uint64) (uint64, error) {
	if err := e.guard.enter(); err != nil {
		return 0, err
	}
	defer e.guard.exit()
	if err := e.requireNotPaused(); err != nil {
		return 0, err
	}

	if caller == "" {
		return 0, Validationf("caller address is required")
	}
	if len(milestoneDescs) == 0 {
		return 0, Validationf("at least one milestone is required")
	}
	if len(milestoneDescs) != len(milestoneAmounts) || len(milestoneDescs) != len(milestoneDeadlines) {
		return 0, Validationf("milestone arrays must have equal length")
	}

	now := e.now()
	var total uint64
	for i := range milestoneDescs {
		if milestoneAmounts[i] == 0 {
			return 0, Validationf("milestone %d amount must be positive", i)
		}
		if milestoneDeadlines[i] <= now {
			return 0, Validationf("milestone %d deadline must be in the future", i)
		}
		if milestoneAmounts[i] > math.MaxUint64-total {
			return 0, Validationf("milestone amounts overflow the project total")
		}
		total += milestoneAmounts[i]
	}
	if deposit < total {
		return 0, Validationf("deposited value %d is below the milestone total %d", deposit, total)
	}

	id, err := e.repo.GetCounter(projectSeq)
	if err != nil {
		return 0, err
	}

	project := &models.Project{
		ID:             id,
		Payer:          caller,
		Title:          title,
		DescriptionRef: descriptionRef,
		TotalAmount:    total,
		Status:         models.ProjectStatusCreated,
		CreatedAt:      now,
		FundsDeposited: true,
		Milestones:     make([]models.Milestone, len(milestoneDescs)),
	}
	for i := range milestoneDescs {
		project.Milestones[i] = models.Milestone{
			Index:       i,
			Description: milestoneDescs[i],
			Amount:      milestoneAmounts[i],
			Deadline:    milestoneDeadlines[i],
			Status:      models.MilestoneStatusPending,
		}
	}

	owned, err := e.repo.GetUserProjects(caller)
	if err != nil {
		return 0, err
	}

	cs := &repository.ChangeSet{}
	cs.PutProject(project)
	cs.SetCounter(projectSeq, id+1)
	cs.SetUserProjects(caller, append(owned, id))
	if err := e.repo.Apply(cs); err != nil {
		return 0, err
	}

	e.emit(events.TypeProjectCreated, map[string]interface{}{
		"project_id":   id,
		"payer":        caller,
		"title":        title,
		"total_amount": total,
	})
	e.emit(events.TypeFundsDeposited, map[string]interface{}{
		"project_id": id,
		"amount":     total,
	})

	// refund any excess over the milestone total
	if deposit > total {
		e.payout(caller, deposit-total)
	}
	return id, nil
}

// AcceptProject binds the caller as payee and activates the project.
func (e *Engine) AcceptProject(caller string, projectID uint64) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.requireNotPaused(); err != nil {
		return err
	}

	if caller == "" {
		return Validationf("caller address is required")
	}
	p, err := e.getProject(projectID)
	if err != nil {
		return err
	}
	if p.Status != models.ProjectStatusCreated {
		return Statef("project is not open for acceptance")
	}
	if p.Payee != "" {
		return Statef("project has already been accepted")
	}
	if caller == p.Payer {
		return Authorizationf("payer cannot accept their own project")
	}

	p.Payee = caller
	p.Status = models.ProjectStatusActive
	p.AcceptedAt = e.now()

	cs := &repository.ChangeSet{}
	cs.PutProject(p)
	if err := e.repo.Apply(cs); err != nil {
		return err
	}

	e.emit(events.TypeProjectAccepted, map[string]interface{}{
		"project_id": projectID,
		"payee":      caller,
	})
	return nil
}

// SubmitMilestone records the payee's deliverable reference and moves
// the milestone to SUBMITTED, which starts the dispute and auto-approve
// windows.
func (e *Engine) SubmitMilestone(caller string, projectID uint64, milestoneID int, deliverableRef string) error {
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
	if caller != p.Payee || caller == "" {
		return Authorizationf("only the payee can submit a milestone")
	}
	if p.Status != models.ProjectStatusActive {
		return Statef("project is not active")
	}
	m := p.Milestone(milestoneID)
	if m == nil {
		return Validationf("milestone %d does not exist", milestoneID)
	}
	if m.Status != models.MilestoneStatusPending {
		return Statef("milestone is not pending")
	}
	if deliverableRef == "" {
		return Validationf("deliverable reference is required")
	}

	m.Status = models.MilestoneStatusSubmitted
	m.DeliverableRef = deliverableRef
	m.SubmittedAt = e.now()

	cs := &repository.ChangeSet{}
	cs.PutProject(p)
	if err := e.repo.Apply(cs); err != nil {
		return err
	}

	e.emit(events.TypeMilestoneSubmitted, map[string]interface{}{
		"project_id":      projectID,
		"milestone_id":    milestoneID,
		"deliverable_ref": deliverableRef,
	})
	return nil
}

// CancelProject lets the payer withdraw an unaccepted project; the full
// deposited total is refunded.
func (e *Engine) CancelProject(caller string, projectID uint64) error {
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
		return Authorizationf("only the payer can cancel the project")
	}
	if p.Status != models.ProjectStatusCreated || p.Payee != "" {
		return Statef("only unaccepted projects can be cancelled")
	}

	p.Status = models.ProjectStatusCancelled
	p.ReleasedAmount = p.TotalAmount

	cs := &repository.ChangeSet{}
	cs.PutProject(p)
	if err := e.repo.Apply(cs); err != nil {
		return err
	}

	// full refund, committed state first
	e.payout(p.Payer, p.TotalAmount)
	return nil
}
