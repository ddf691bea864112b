package storetest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tablewise/seatcore/internal/observability"
)

// PublishedEvent records one PublishJSON call.
type PublishedEvent struct {
	Key     string
	Payload interface{}
}

// Publisher records published events in order.
type Publisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

func (p *Publisher) PublishJSON(ctx context.Context, key string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{Key: key, Payload: payload})
	return nil
}

func (p *Publisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// CountByKey returns how many events were published under a routing key.
func (p *Publisher) CountByKey(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, e := range p.events {
		if e.Key == key {
			count++
		}
	}
	return count
}

// Cache counts snapshot invalidations per table.
type Cache struct {
	mu          sync.Mutex
	invalidated map[uuid.UUID]int
}

func NewCache() *Cache {
	return &Cache{invalidated: make(map[uuid.UUID]int)}
}

func (c *Cache) Invalidate(ctx context.Context, tableID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated[tableID]++
	return nil
}

func (c *Cache) Invalidations(tableID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated[tableID]
}

// AuditEntry records one audit call.
type AuditEntry struct {
	Action string
	Actor  string
	Target uuid.UUID
}

// Auditor records admin audit entries.
type Auditor struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *Auditor) LogSeatOverride(ctx context.Context, actor string, seatID, holdID uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, AuditEntry{Action: "seat_override", Actor: actor, Target: seatID})
	return nil
}

func (a *Auditor) LogBookingCancelled(ctx context.Context, actor string, bookingID uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, AuditEntry{Action: "booking_cancelled", Actor: actor, Target: bookingID})
	return nil
}

func (a *Auditor) Entries() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

type nopLogger struct{}

// NopLogger returns a logger that discards everything.
func NopLogger() observability.Logger {
	return nopLogger{}
}

func (nopLogger) Info(args ...interface{})  {}
func (nopLogger) Error(args ...interface{}) {}
func (nopLogger) Debug(args ...interface{}) {}
func (nopLogger) Warn(args ...interface{})  {}
func (nopLogger) WithField(key string, value interface{}) observability.Logger {
	return nopLogger{}
}
