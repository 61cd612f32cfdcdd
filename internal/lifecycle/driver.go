package lifecycle

import (
	"context"
	"strings"
	"time"

	"clm-insight/internal/jira"

	"github.com/rs/zerolog/log"
)

// maxTicketAge is the window after creation during which the driver will
// still advance a ticket. Older tickets are skipped on every poll.
const maxTicketAge = 3 * time.Hour

const (
	statusStudying = "Studying"
	statusReceived = "Received"
)

// Statuses a ticket may be in before each transition fires.
var (
	studyingSources = []string{"Open", "Authorized"}
	receivedSources = []string{"Open", "Studying", "Authorized"}
)

// Driver advances freshly created error tickets through
// Authorized, Studying and Received on a fixed poll cycle.
type Driver struct {
	client   jira.Client
	journal  *Journal
	tracking *Tracking

	// Delay before Studying; Received fires at twice the delay.
	delay        time.Duration
	pollInterval time.Duration

	now func() time.Time
}

// NewDriver builds a lifecycle driver. delay gates the Studying
// transition; pollInterval is the sleep between passes.
func NewDriver(client jira.Client, journal *Journal, tracking *Tracking, delay, pollInterval time.Duration) *Driver {
	return &Driver{
		client:       client,
		journal:      journal,
		tracking:     tracking,
		delay:        delay,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

// Run polls until the context is cancelled. Failures within a pass are
// logged and never stop the loop.
func (d *Driver) Run(ctx context.Context) error {
	log.Info().Dur("delay", d.delay).Dur("poll", d.pollInterval).Msg("Lifecycle driver started")
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		d.Poll(ctx)
		select {
		case <-ctx.Done():
			log.Info().Msg("Lifecycle driver stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll runs one pass over the journaled creations.
func (d *Driver) Poll(ctx context.Context) {
	var candidates []CreationResult
	for _, result := range d.journal.All() {
		if result.Status == StatusSuccess && result.CLMErrorKey != "" {
			candidates = append(candidates, result)
		}
	}
	log.Debug().Int("count", len(candidates)).Msg("Checking CLM errors for transitions")

	for _, result := range candidates {
		if ctx.Err() != nil {
			return
		}
		d.process(ctx, result)
	}
}

func (d *Driver) process(ctx context.Context, result CreationResult) {
	key := result.CLMErrorKey

	createdAt, err := result.CreatedAt()
	if err != nil {
		log.Error().Err(err).Str("key", key).Str("timestamp", result.Timestamp).
			Msg("Unparseable creation timestamp, skipping ticket")
		return
	}
	elapsed := d.now().Sub(createdAt)
	if elapsed > maxTicketAge {
		log.Debug().Str("key", key).Dur("age", elapsed).Msg("Ticket too old for transitions, skipping")
		return
	}

	issue, err := d.client.GetIssue(ctx, key, jira.SearchOptions{Fields: []string{"status", "summary"}})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to fetch ticket status")
		return
	}
	status := issue.Fields.Status.Name

	if statusIn(status, studyingSources) && elapsed >= d.delay {
		log.Info().Str("key", key).Str("status", status).Msg("Transitioning to Studying")
		d.transition(ctx, key, statusStudying, studyingFieldVariants())
	}

	if statusIn(status, receivedSources) && elapsed >= 2*d.delay {
		if d.tracking.PreviouslyReceived(key) {
			log.Debug().Str("key", key).Msg("Ticket already entered Received, skipping")
			return
		}
		log.Info().Str("key", key).Str("status", status).Msg("Transitioning to Received")
		versionID := latestVersionID(subsystemVersionOptions)
		if d.transition(ctx, key, statusReceived, receivedFieldVariants(issue.Fields.Summary, versionID)) {
			if err := d.tracking.MarkReceived(key, d.now()); err != nil {
				log.Error().Err(err).Str("key", key).Msg("Failed to persist received mark")
			}
		}
	}
}

// transition resolves the transition id by name and walks the encoding
// ladder until one variant is accepted.
func (d *Driver) transition(ctx context.Context, key, name string, variants []map[string]interface{}) bool {
	transitions, err := d.client.GetTransitions(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to list transitions")
		return false
	}
	var transitionID string
	for _, t := range transitions {
		if t.Name == name {
			transitionID = t.ID
			break
		}
	}
	if transitionID == "" {
		log.Error().Str("key", key).Str("transition", name).Msg("Transition not available from current status")
		return false
	}

	for i, fields := range variants {
		if err := d.client.PostTransition(ctx, key, transitionID, fields); err != nil {
			log.Warn().Err(err).Str("key", key).Str("transition", name).Int("variant", i+1).
				Msg("Transition attempt rejected")
			continue
		}
		log.Info().Str("key", key).Str("transition", name).Int("variant", i+1).Msg("Transition succeeded")
		return true
	}
	log.Error().Str("key", key).Str("transition", name).Msg("All transition variants failed")
	return false
}

func statusIn(status string, set []string) bool {
	for _, s := range set {
		if strings.EqualFold(status, s) {
			return true
		}
	}
	return false
}
