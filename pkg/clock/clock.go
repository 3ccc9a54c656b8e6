// Package clock abstrae la hora del sistema para que los workers sean deterministas en tests.
package clock

import (
	"sync"
	"time"
)

// Clock fuente de tiempo. time.Time lleva lectura monotónica y de pared.
type Clock interface {
	Now() time.Time
}

// System usa time.Now.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fake reloj manual para tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake crea un reloj fijo en t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set fija la hora.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance adelanta el reloj d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// UTCDay devuelve la fecha de calendario UTC (YYYY-MM-DD) de t.
func UTCDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// StartOfDayUTC trunca t a la medianoche UTC.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
