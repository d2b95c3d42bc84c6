package repository

import (
	"encoding/json"
	"fmt"

	"escrow-ledger/db"
	"escrow-ledger/models"

	"github.com/syndtr/goleveldb/leveldb"
)

// It abstracts the storage layer from the business logic. Reads return
// (nil, nil) for records that do not exist; counters default to zero.
type EscrowRepositoryInterface interface {
	GetProject(id uint64) (*models.Project, error)
	GetAllProjects() ([]*models.Project, error)
	GetDispute(id uint64) (*models.Dispute, error)
	GetRoster() (*models.AdminRoster, error)
	GetRating(address string) (*models.UserRating, error)
	GetUserProjects(address string) ([]uint64, error)
	GetSettings() (*models.Settings, error)
	GetCounter(name string) (uint64, error)
	Apply(cs *ChangeSet) error
}

// ChangeSet collects every record one operation touches. Apply commits
// the whole set in a single batch so an operation never leaves partial
// state behind.
type ChangeSet struct {
	Projects     []*models.Project
	Disputes     []*models.Dispute
	Roster       *models.AdminRoster
	Ratings      []*models.UserRating
	Settings     *models.Settings
	Counters     map[string]uint64
	UserProjects map[string][]uint64
}

// PutProject queues a project record for commit.
func (cs *ChangeSet) PutProject(p *models.Project) {
	cs.Projects = append(cs.Projects, p)
}

// PutDispute queues a dispute record for commit.
func (cs *ChangeSet) PutDispute(d *models.Dispute) {
	cs.Disputes = append(cs.Disputes, d)
}

// SetCounter queues a sequence counter value for commit.
func (cs *ChangeSet) SetCounter(name string, value uint64) {
	if cs.Counters == nil {
		cs.Counters = make(map[string]uint64)
	}
	cs.Counters[name] = value
}

// SetUserProjects queues the full owned-project index of one address.
func (cs *ChangeSet) SetUserProjects(address string, ids []uint64) {
	if cs.UserProjects == nil {
		cs.UserProjects = make(map[string][]uint64)
	}
	cs.UserProjects[address] = ids
}

// Key layout inside LevelDB. Project and dispute ids are zero-padded so
// iteration order matches id order.
func projectKey(id uint64) []byte     { return []byte(fmt.Sprintf("project:%020d", id)) }
func disputeKey(id uint64) []byte     { return []byte(fmt.Sprintf("dispute:%020d", id)) }
func ratingKey(address string) []byte { return []byte("rating:" + address) }
func counterKey(name string) []byte   { return []byte("seq:" + name) }
func userProjectsKey(a string) []byte { return []byte("userprojects:" + a) }

var (
	rosterKey   = []byte("roster")
	settingsKey = []byte("settings")
)

// EscrowRepository implements EscrowRepositoryInterface using LevelDB
// as the storage backend, with records stored as JSON.
type EscrowRepository struct {
	db *db.LevelDB
}

// NewEscrowRepository creates and returns a new EscrowRepository instance
func NewEscrowRepository(db *db.LevelDB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

func (r *EscrowRepository) get(key []byte, out interface{}) (bool, error) {
	data, err := r.db.Get(key)
	if err != nil {
		if db.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// GetProject retrieves a project by id, nil when absent
func (r *EscrowRepository) GetProject(id uint64) (*models.Project, error) {
	var p models.Project
	ok, err := r.get(projectKey(id), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// GetAllProjects retrieves every project in id order
func (r *EscrowRepository) GetAllProjects() ([]*models.Project, error) {
	iter := r.db.NewPrefixIterator([]byte("project:"))
	defer iter.Release()

	var projects []*models.Project
	for iter.Next() {
		var p models.Project
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	return projects, iter.Error()
}

// GetDispute retrieves a dispute by id, nil when absent
func (r *EscrowRepository) GetDispute(id uint64) (*models.Dispute, error) {
	var d models.Dispute
	ok, err := r.get(disputeKey(id), &d)
	if err != nil || !ok {
		return nil, err
	}
	return &d, nil
}

// GetRoster retrieves the admin roster, nil when never initialized
func (r *EscrowRepository) GetRoster() (*models.AdminRoster, error) {
	var roster models.AdminRoster
	ok, err := r.get(rosterKey, &roster)
	if err != nil || !ok {
		return nil, err
	}
	return &roster, nil
}

// GetRating retrieves the accumulated rating of an address, nil when unrated
func (r *EscrowRepository) GetRating(address string) (*models.UserRating, error) {
	var rating models.UserRating
	ok, err := r.get(ratingKey(address), &rating)
	if err != nil || !ok {
		return nil, err
	}
	return &rating, nil
}

// GetUserProjects retrieves the project ids owned by an address
func (r *EscrowRepository) GetUserProjects(address string) ([]uint64, error) {
	var ids []uint64
	ok, err := r.get(userProjectsKey(address), &ids)
	if err != nil || !ok {
		return nil, err
	}
	return ids, nil
}

// GetSettings retrieves the persisted engine settings, nil when never initialized
func (r *EscrowRepository) GetSettings() (*models.Settings, error) {
	var s models.Settings
	ok, err := r.get(settingsKey, &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

// GetCounter retrieves a monotonic sequence counter, zero when unset
func (r *EscrowRepository) GetCounter(name string) (uint64, error) {
	var n uint64
	ok, err := r.get(counterKey(name), &n)
	if err != nil || !ok {
		return 0, err
	}
	return n, nil
}

// Apply writes every record in the change set as one atomic batch
func (r *EscrowRepository) Apply(cs *ChangeSet) error {
	batch := new(leveldb.Batch)

	put := func(key []byte, v interface{}) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		batch.Put(key, data)
		return nil
	}

	for _, p := range cs.Projects {
		if err := put(projectKey(p.ID), p); err != nil {
			return err
		}
	}
	for _, d := range cs.Disputes {
		if err := put(disputeKey(d.ID), d); err != nil {
			return err
		}
	}
	if cs.Roster != nil {
		if err := put(rosterKey, cs.Roster); err != nil {
			return err
		}
	}
	for _, rating := range cs.Ratings {
		if err := put(ratingKey(rating.Address), rating); err != nil {
			return err
		}
	}
	if cs.Settings != nil {
		if err := put(settingsKey, cs.Settings); err != nil {
			return err
		}
	}
	for name, value := range cs.Counters {
		if err := put(counterKey(name), value); err != nil {
			return err
		}
	}
	for address, ids := range cs.UserProjects {
		if err := put(userProjectsKey(address), ids); err != nil {
			return err
		}
	}

	return r.db.Write(batch)
}
