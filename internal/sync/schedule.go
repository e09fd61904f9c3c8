package sync

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
)

// Schedule runs job every interval on a background scheduler, starting one
// interval from now. Runs never overlap. Call Stop on the result to end it.
func Schedule(interval time.Duration, job func()) (*gocron.Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %v", interval)
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(interval).WaitForSchedule().Do(job); err != nil {
		return nil, fmt.Errorf("failed to schedule sync: %w", err)
	}
	s.StartAsync()
	return s, nil
}
