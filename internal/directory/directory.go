package directory

import (
	"context"
	"log"
	"sync"
	"time"

	"admin-console/internal/models"
)

// GroupLister is the backend call the poller depends on.
type GroupLister interface {
	Groups(ctx context.Context) ([]models.Group, error)
}

// Directory keeps a read-mostly cached copy of the group list, refreshed on
// a polling interval. Polling and the push stream are independent refresh
// policies: while a group's message stream is active the poll is suspended
// so a refresh never disrupts the operator mid-conversation.
type Directory struct {
	backend  GroupLister
	interval time.Duration

	mu             sync.RWMutex
	groups         []models.Group
	suspendedTopic string
}

// New constructs a directory polling at the given interval.
func New(backend GroupLister, interval time.Duration) *Directory {
	return &Directory{backend: backend, interval: interval}
}

// Run polls until ctx is done. The list is primed immediately.
func (d *Directory) Run(ctx context.Context) {
	if err := d.Refresh(ctx); err != nil {
		log.Printf("directory: initial refresh: %v", err)
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.SuspendedTopic() != "" {
				continue
			}
			if err := d.Refresh(ctx); err != nil {
				log.Printf("directory: refresh: %v", err)
			}
		}
	}
}

// Refresh replaces the cached list from the backend.
func (d *Directory) Refresh(ctx context.Context) error {
	groups, err := d.backend.Groups(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.groups = groups
	d.mu.Unlock()
	return nil
}

// Suspend pauses polling while the given topic's message stream is active.
func (d *Directory) Suspend(topic string) {
	d.mu.Lock()
	d.suspendedTopic = topic
	d.mu.Unlock()
}

// Resume re-enables polling, but only if the caller still owns the
// suspension; a stale resume after a newer Suspend is ignored.
func (d *Directory) Resume(topic string) {
	d.mu.Lock()
	if d.suspendedTopic == topic {
		d.suspendedTopic = ""
	}
	d.mu.Unlock()
}

// SuspendedTopic reports which topic, if any, holds polling suspended.
func (d *Directory) SuspendedTopic() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.suspendedTopic
}

// Groups returns a copy of the cached list.
func (d *Directory) Groups() []models.Group {
	d.mu.RLock()
	defer d.mu.RUnlock()
	groups := make([]models.Group, len(d.groups))
	copy(groups, d.groups)
	return groups
}

// Group looks up a cached group by id.
func (d *Directory) Group(id string) (models.Group, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, g := range d.groups {
		if g.ID == id {
			return g, true
		}
	}
	return models.Group{}, false
}
