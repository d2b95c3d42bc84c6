package models

// UserRating accumulates ratings given to an address. Ratings are
// unauthenticated: any caller may rate any address, and no proof of a
// completed engagement is required.
type UserRating struct {
	Address string `json:"address"`
	Sum     uint64 `json:"sum"`
	Count   uint64 `json:"count"`
}

// Average is the floor of Sum/Count, 0 when unrated.
func (u *UserRating) Average() uint64 {
	if u.Count == 0 {
		return 0
	}
	return u.Sum / u.Count
}
