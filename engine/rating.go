package engine

import (
	"escrow-ledger/events"
	"escrow-ledger/models"
	"escrow-ledger/repository"
)

// RateUser adds a 1-5 rating to an address. Ratings are deliberately
// unauthenticated: any caller may rate any address without proof of a
// completed engagement. A known weak trust boundary, kept as-is.
func (e *Engine) RateUser(caller, address string, rating uint64) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.requireNotPaused(); err != nil {
		return err
	}

	if address == "" {
		return Validationf("rated address is required")
	}
	if rating < 1 || rating > 5 {
		return Validationf("rating must be between 1 and 5")
	}

	r, err := e.repo.GetRating(address)
	if err != nil {
		return err
	}
	if r == nil {
		r = &models.UserRating{Address: address}
	}
	r.Sum += rating
	r.Count++

	if err := e.repo.Apply(&repository.ChangeSet{Ratings: []*models.UserRating{r}}); err != nil {
		return err
	}

	e.emit(events.TypeUserRated, map[string]interface{}{
		"rater":   caller,
		"address": address,
		"rating":  rating,
	})
	return nil
}

// GetUserRating returns the accumulated rating of an address; a zero
// record for addresses never rated.
func (e *Engine) GetUserRating(address string) (*models.UserRating, error) {
	r, err := e.repo.GetRating(address)
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = &models.UserRating{Address: address}
	}
	return r, nil
}
