// Package clock provides an injectable time source pinned to the service's
// configured timezone, so temporal logic is testable without wall-clock
// dependence.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock supplies "now" and the timezone all civil dates and times of day are
// interpreted in.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type systemClock struct{ loc *time.Location }

// NewSystem returns a wall-clock Clock pinned to the named timezone.
func NewSystem(tz string) (Clock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &systemClock{loc: loc}, nil
}

func (c *systemClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c *systemClock) Location() *time.Location { return c.loc }

// Fake is a manually advanced Clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake frozen at the given instant; its location is taken
// from the instant itself.
func NewFake(now time.Time) *Fake { return &Fake{now: now} }

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Location() *time.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.Location()
}

// Set moves the fake clock to an absolute instant.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
