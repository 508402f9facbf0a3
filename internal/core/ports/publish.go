package ports

import "github.com/cyberscope/cyberscope/internal/core/domain"

// CollectionPublisher pushes finished collection runs to live subscribers.
// Implementations must not block the collector; slow consumers are dropped.
type CollectionPublisher interface {
	PublishCollection(event domain.CollectionEvent)
}
