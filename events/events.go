package events

import (
	"sync"

	"github.com/google/uuid"
)

// Notification types emitted by the engine.
const (
	TypeProjectCreated        = "ProjectCreated"
	TypeFundsDeposited        = "FundsDeposited"
	TypeProjectAccepted       = "ProjectAccepted"
	TypeMilestoneSubmitted    = "MilestoneSubmitted"
	TypeMilestoneApproved     = "MilestoneApproved"
	TypeMilestoneAutoApproved = "MilestoneAutoApproved"
	TypePaymentReleased       = "PaymentReleased"
	TypeDisputeRaised         = "DisputeRaised"
	TypeDisputeVoted          = "DisputeVoted"
	TypeDisputeResolved       = "DisputeResolved"
	TypeUserRated             = "UserRated"
	TypeAdminAdded            = "AdminAdded"
	TypeAdminRemoved          = "AdminRemoved"
	TypeContractPaused        = "ContractPaused"
	TypeContractUnpaused      = "ContractUnpaused"
)

// Event is one notification emitted after an operation commits.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp int64                  `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields"`
}

// New builds an event with a fresh id.
func New(eventType string, timestamp int64, fields map[string]interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: timestamp,
		Fields:    fields,
	}
}

// Subscriber receives every published event.
type Subscriber func(Event)

// Bus fans events out to subscribers synchronously, in subscription
// order. The engine publishes only after its state commit, so
// subscribers always observe committed state.
type Bus struct {
	mu   sync.Mutex
	subs []Subscriber
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a subscriber for all future events.
func (b *Bus) Subscribe(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, fn := range subs {
		fn(evt)
	}
}
