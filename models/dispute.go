package models

// Vote is a single admin's submitted payout split for a dispute. Votes
// are kept as a small ordered table scoped to the dispute record.
type Vote struct {
	Admin      string `json:"admin"`
	Percentage uint64 `json:"percentage"` // share to the payee, 0..100
}

// Dispute contests a submitted milestone. It references its project and
// milestone by id; it does not own them. At most one unresolved dispute
// can exist per (project, milestone) pair because disputing moves the
// milestone out of the SUBMITTED state.
type Dispute struct {
	ID          uint64 `json:"id"`
	ProjectID   uint64 `json:"project_id"`
	MilestoneID int    `json:"milestone_id"`
	Initiator   string `json:"initiator"`
	Reason      string `json:"reason"`
	Resolved    bool   `json:"resolved"`
	CreatedAt   int64  `json:"created_at"`
	Votes       []Vote `json:"votes"`
}

// HasVoted reports whether the given admin already voted on this dispute.
func (d *Dispute) HasVoted(admin string) bool {
	for _, v := range d.Votes {
		if v.Admin == admin {
			return true
		}
	}
	return false
}

// VoteOf returns the vote submitted by the given admin, if any.
func (d *Dispute) VoteOf(admin string) (Vote, bool) {
	for _, v := range d.Votes {
		if v.Admin == admin {
			return v, true
		}
	}
	return Vote{}, false
}
