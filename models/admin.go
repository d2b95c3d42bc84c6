package models

// AdminRoster is the ordered, non-empty set of addresses empowered to
// vote on disputes. The deploying owner is seeded as the first member.
// Order matters only for deterministic enumeration; removal swaps with
// the last entry and truncates, so order changes across removals.
type AdminRoster struct {
	Admins []string `json:"admins"`
}

// Contains reports roster membership.
func (r *AdminRoster) Contains(address string) bool {
	for _, a := range r.Admins {
		if a == address {
			return true
		}
	}
	return false
}

// Remove drops the address by swapping it with the last entry and
// truncating. Returns false when the address is not a member.
func (r *AdminRoster) Remove(address string) bool {
	for i, a := range r.Admins {
		if a == address {
			last := len(r.Admins) - 1
			r.Admins[i] = r.Admins[last]
			r.Admins = r.Admins[:last]
			return true
		}
	}
	return false
}
