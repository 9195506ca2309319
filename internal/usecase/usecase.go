package usecase

import (
	"time"

	"ListingsAggregator/internal/domain"
)

// Clock supplies the current time; tests inject a deterministic one.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

type nopRecorder struct{}

func (nopRecorder) AdapterFetched(domain.Source, int, time.Duration) {}
func (nopRecorder) AdapterFailed(domain.Source, string, time.Duration) {}
func (nopRecorder) Persisted(domain.Source, bool) {}
func (nopRecorder) PersistFailed(domain.Source) {}
func (nopRecorder) Reaped(int64) {}
