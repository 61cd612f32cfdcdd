package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

type collector interface {
	DailyCollect(ctx context.Context) error
}

// Cron triggers the daily snapshot refresh at a fixed local time.
type Cron struct {
	svc collector
	c   *cron.Cron
}

// NewCron schedules the daily collector at hour:minute local time.
func NewCron(svc collector, hour, minute int) *Cron {
	c := cron.New(cron.WithLocation(time.Local),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{svc: svc, c: c}
	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	if _, err := c.AddFunc(spec, cr.daily); err != nil {
		log.Error().Err(err).Str("spec", spec).Msg("Failed to schedule daily collector")
	}
	return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) daily() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	log.Info().Msg("Daily snapshot refresh starting")
	if err := cr.svc.DailyCollect(ctx); err != nil {
		log.Error().Err(err).Msg("Daily snapshot refresh failed")
	}
}
