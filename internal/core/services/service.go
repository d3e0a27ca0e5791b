// Package services implements the panel's use cases on top of the ports.
package services

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

// base carries the collaborators every service shares.
type base struct {
	log    *zap.Logger
	events ports.Publisher
	clock  func() time.Time
	newID  func() string
}

// Common holds optional collaborators shared by all services.
// Zero values are replaced by working defaults.
type Common struct {
	Logger *zap.Logger
	Events ports.Publisher
	Clock  func() time.Time
	NewID  func() string
}

func (c Common) base() base {
	b := base{log: c.Logger, events: c.Events, clock: c.Clock, newID: c.NewID}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	if b.events == nil {
		b.events = discard{}
	}
	if b.clock == nil {
		b.clock = func() time.Time { return time.Now().UTC() }
	}
	if b.newID == nil {
		b.newID = uuid.NewString
	}
	return b
}

func (b base) publish(topic, name string, data map[string]any) {
	b.events.Publish(domain.Event{Name: name, Topic: topic, Data: data, Timestamp: b.clock()})
}

type discard struct{}

func (discard) Publish(domain.Event) {}
