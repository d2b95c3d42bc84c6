package repository

import (
	"encoding/json"
	"sync"

	"escrow-ledger/models"
)

// MemoryRepository is an in-memory EscrowRepositoryInterface used by
// tests and local experiments. Records are cloned on the way in and out
// to simulate retrieval from a real store.
type MemoryRepository struct {
	mu           sync.Mutex
	projects     map[uint64]*models.Project
	disputes     map[uint64]*models.Dispute
	roster       *models.AdminRoster
	ratings      map[string]*models.UserRating
	settings     *models.Settings
	counters     map[string]uint64
	userProjects map[string][]uint64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		projects:     make(map[uint64]*models.Project),
		disputes:     make(map[uint64]*models.Dispute),
		ratings:      make(map[string]*models.UserRating),
		counters:     make(map[string]uint64),
		userProjects: make(map[string][]uint64),
	}
}

func clone(src, dst interface{}) {
	data, err := json.Marshal(src)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		panic(err)
	}
}

func (m *MemoryRepository) GetProject(id uint64) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	var out models.Project
	clone(p, &out)
	return &out, nil
}

func (m *MemoryRepository) GetAllProjects() ([]*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max uint64
	for id := range m.projects {
		if id >= max {
			max = id + 1
		}
	}
	var out []*models.Project
	for id := uint64(0); id < max; id++ {
		if p, ok := m.projects[id]; ok {
			var cp models.Project
			clone(p, &cp)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryRepository) GetDispute(id uint64) (*models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok {
		return nil, nil
	}
	var out models.Dispute
	clone(d, &out)
	return &out, nil
}

func (m *MemoryRepository) GetRoster() (*models.AdminRoster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roster == nil {
		return nil, nil
	}
	var out models.AdminRoster
	clone(m.roster, &out)
	return &out, nil
}

func (m *MemoryRepository) GetRating(address string) (*models.UserRating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.ratings[address]
	if !ok {
		return nil, nil
	}
	var out models.UserRating
	clone(r, &out)
	return &out, nil
}

func (m *MemoryRepository) GetUserProjects(address string) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.userProjects[address]
	if !ok {
		return nil, nil
	}
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out, nil
}

func (m *MemoryRepository) GetSettings() (*models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return nil, nil
	}
	s := *m.settings
	return &s, nil
}

func (m *MemoryRepository) GetCounter(name string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name], nil
}

func (m *MemoryRepository) Apply(cs *ChangeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range cs.Projects {
		var cp models.Project
		clone(p, &cp)
		m.projects[p.ID] = &cp
	}
	for _, d := range cs.Disputes {
		var cp models.Dispute
		clone(d, &cp)
		m.disputes[d.ID] = &cp
	}
	if cs.Roster != nil {
		var cp models.AdminRoster
		clone(cs.Roster, &cp)
		m.roster = &cp
	}
	for _, r := range cs.Ratings {
		var cp models.UserRating
		clone(r, &cp)
		m.ratings[r.Address] = &cp
	}
	if cs.Settings != nil {
		s := *cs.Settings
		m.settings = &s
	}
	for name, value := range cs.Counters {
		m.counters[name] = value
	}
	for address, ids := range cs.UserProjects {
		out := make([]uint64, len(ids))
		copy(out, ids)
		m.userProjects[address] = out
	}
	return nil
}
