package entities

import (
	"time"

	"github.com/google/uuid"
)

// FacilityEventType represents the type of facility event
type FacilityEventType string

const (
	// FacilityEventTypeDiscovered is emitted when a supplemental lookup
	// surfaces a facility the curated store does not hold.
	FacilityEventTypeDiscovered FacilityEventType = "discovered"
)

// FacilityEvent carries a facility candidate to downstream consumers such as
// the curation backlog.
type FacilityEvent struct {
	ID        string            `json:"id"`
	SearchID  string            `json:"search_id,omitempty"`
	EventType FacilityEventType `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Candidate Candidate         `json:"candidate"`
}

// NewDiscoveredEvent wraps a supplemental candidate in a discovery event.
func NewDiscoveredEvent(searchID string, c Candidate) *FacilityEvent {
	return &FacilityEvent{
		ID:        uuid.New().String(),
		SearchID:  searchID,
		EventType: FacilityEventTypeDiscovered,
		Timestamp: time.Now().UTC(),
		Candidate: c,
	}
}
