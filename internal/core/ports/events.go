package ports

import "github.com/melih/lighthouse-panel/internal/core/domain"

// Publisher delivers events to subscribers of the event's topic.
// Publishing never blocks and gives no delivery guarantee.
type Publisher interface {
	Publish(event domain.Event)
}
