package models

// Project status values. A project moves forward only, except the
// DISPUTED -> ACTIVE transition when a dispute is resolved.
const (
	ProjectStatusCreated   = "created"
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
	ProjectStatusCancelled = "cancelled"
	ProjectStatusDisputed  = "disputed"
)

// Milestone status values. APPROVED is terminal: it gates fund release
// exactly once. REJECTED is part of the status vocabulary but no
// operation currently produces it.
const (
	MilestoneStatusPending   = "pending"
	MilestoneStatusSubmitted = "submitted"
	MilestoneStatusApproved  = "approved"
	MilestoneStatusDisputed  = "disputed"
	MilestoneStatusRejected  = "rejected"
)

// Milestone is a sub-deliverable of a project and the unit of fund
// release. Milestones are owned by exactly one project and are embedded
// in its record.
type Milestone struct {
	Index          int    `json:"index"`           // position within the project
	Description    string `json:"description"`     // what is being delivered
	Amount         uint64 `json:"amount"`          // smallest currency unit
	Deadline       int64  `json:"deadline"`        // unix seconds
	Status         string `json:"status"`          // pending / submitted / approved / disputed
	DeliverableRef string `json:"deliverable_ref"` // opaque reference, empty until submitted
	SubmittedAt    int64  `json:"submitted_at"`    // unix seconds, 0 until submitted
}

// Project is an escrow agreement between a payer and a payee, split
// into milestones. TotalAmount equals the sum of the milestone amounts
// at creation and never changes afterward.
type Project struct {
	ID             uint64      `json:"id"`
	Payer          string      `json:"payer"`
	Payee          string      `json:"payee"` // empty until accepted
	Title          string      `json:"title"`
	DescriptionRef string      `json:"description_ref"` // opaque reference, never interpreted
	TotalAmount    uint64      `json:"total_amount"`
	ReleasedAmount uint64      `json:"released_amount"` // paid out or refunded so far
	Status         string      `json:"status"`
	CreatedAt      int64       `json:"created_at"`
	AcceptedAt     int64       `json:"accepted_at"`
	FundsDeposited bool        `json:"funds_deposited"`
	Milestones     []Milestone `json:"milestones"`
}

// Milestone returns the milestone at the given index, or nil when the
// index is out of range.
func (p *Project) Milestone(index int) *Milestone {
	if index < 0 || index >= len(p.Milestones) {
		return nil
	}
	return &p.Milestones[index]
}

// AllMilestonesApproved reports whether every milestone has been
// approved, which is what flips a project to COMPLETED after a release.
func (p *Project) AllMilestonesApproved() bool {
	for i := range p.Milestones {
		if p.Milestones[i].Status != MilestoneStatusApproved {
			return false
		}
	}
	return true
}

// HeldAmount is the value still custodied for this project.
func (p *Project) HeldAmount() uint64 {
	return p.TotalAmount - p.ReleasedAmount
}
