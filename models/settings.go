package models

// Settings is the owner-governed, process-wide configuration. It is
// persisted so fee and pause state survive restarts.
type Settings struct {
	FeePercent uint64 `json:"fee_percent"` // platform fee, at most 10
	Paused     bool   `json:"paused"`      // circuit breaker
}
