package providers

import (
	"context"

	"github.com/soberbookings/backend/internal/domain/entities"
)

// EventChannelFacilityDiscovered receives facilities surfaced by the
// supplemental lookup that survived deduplication.
const EventChannelFacilityDiscovered = "facility:discovered"

// DiscoveryPublisher hands newly discovered facilities to the curation backlog.
type DiscoveryPublisher interface {
	// Publish publishes an event on a channel
	Publish(ctx context.Context, channel string, event *entities.FacilityEvent) error
}
