package inmemory

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSweepSchedule runs the idle-session sweep every ten minutes.
const DefaultSweepSchedule = "@every 10m"

// StartSweeper schedules Sweep on a cron schedule. Sessions idle for longer
// than idleFor are dropped along with their history. The caller stops the
// returned scheduler on shutdown.
func StartSweeper(store *Store, schedule string, idleFor time.Duration, log zerolog.Logger) (*cron.Cron, error) {
	if idleFor <= 0 {
		return nil, fmt.Errorf("StartSweeper: idle timeout must be positive")
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		removed := store.Sweep(idleFor, time.Now())
		if removed > 0 {
			log.Info().Int("removed", removed).Int("remaining", store.Len()).Msg("Swept idle sessions")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("StartSweeper: invalid schedule %q: %w", schedule, err)
	}

	c.Start()
	return c, nil
}
