package engine

import "escrow-ledger/models"

// Read-only views. These take no operation lock: reads are purely
// observational and never mutate state.

// GetProject returns the full project record.
func (e *Engine) GetProject(projectID uint64) (*models.Project, error) {
	return e.getProject(projectID)
}

// GetProjectMilestones returns the project's milestones in index order.
func (e *Engine) GetProjectMilestones(projectID uint64) ([]models.Milestone, error) {
	p, err := e.getProject(projectID)
	if err != nil {
		return nil, err
	}
	return p.Milestones, nil
}

// GetUserProjects returns the ids of projects created by the address.
func (e *Engine) GetUserProjects(address string) ([]uint64, error) {
	return e.repo.GetUserProjects(address)
}
