package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"clm-insight/internal/jira"
	"clm-insight/internal/report"

	"github.com/rs/zerolog/log"
)

const (
	errorProjectKey   = "CLM"
	errorIssueType    = "Error"
	clmLinkTypeName   = "links CLM to"
	urgencyValue      = "B - High"
	companyValue      = "investment"
	environmentValue  = "DEVELOPMENT"
	productGroupField = "Product Group"
)

// Creator builds error tickets in the error-tracking project from source
// tickets and records every attempt in the journal.
type Creator struct {
	client     jira.Client
	journal    *Journal
	subsystems []string
}

// NewCreator wires a creator to the Jira client and results journal.
// subsystems is the registry used to map source components; when empty
// the built-in registry applies.
func NewCreator(client jira.Client, journal *Journal, subsystems []string) *Creator {
	if len(subsystems) == 0 {
		subsystems = report.DefaultSubsystems
	}
	return &Creator{client: client, journal: journal, subsystems: subsystems}
}

// CreateErrors creates one error ticket per comma-separated source key.
// It returns source key → created key for the successes; failures are
// journaled and logged but never abort the batch.
func (c *Creator) CreateErrors(ctx context.Context, keysCSV string) map[string]string {
	created := make(map[string]string)
	for _, raw := range strings.Split(keysCSV, ",") {
		key := strings.TrimSpace(raw)
		if key == "" {
			continue
		}

		clmKey, err := c.createError(ctx, key)
		if err != nil {
			log.Error().Err(err).Str("source", key).Msg("Failed to create CLM error")
		} else {
			created[key] = clmKey
		}
		if err := c.journal.Append(key, clmKey); err != nil {
			log.Error().Err(err).Str("source", key).Msg("Failed to journal creation result")
		}
	}
	log.Info().Int("created", len(created)).Msg("CLM error creation batch finished")
	return created
}

func (c *Creator) createError(ctx context.Context, sourceKey string) (string, error) {
	issue, err := c.client.GetIssue(ctx, sourceKey, jira.SearchOptions{
		Fields: []string{"summary", "description", "components"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch source issue: %w", err)
	}

	var component string
	if len(issue.Fields.Components) > 0 {
		component = issue.Fields.Components[0].Name
	}
	info := report.ResolveSubsystem(component, c.subsystems)
	log.Info().Str("source", sourceKey).Str("component", component).
		Str("subsystem", info.Subsystem).Msg("Resolved subsystem for CLM error")

	// Metadata and the field registry are both best effort; the fixed
	// fallback ids cover an instance that exposes neither.
	meta, err := c.client.GetCreateMeta(ctx, errorProjectKey, errorIssueType)
	if err != nil {
		log.Warn().Err(err).Msg("Create metadata unavailable, falling back to field registry")
	}
	var registry []jira.FieldDTO
	if meta == nil {
		registry, err = c.client.ListFields(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Field registry unavailable, using fixed field ids")
		}
	}

	fields := map[string]interface{}{
		"project":     map[string]string{"key": errorProjectKey},
		"issuetype":   map[string]string{"name": errorIssueType},
		"summary":     issue.Fields.Summary,
		"description": issue.Fields.Description,
	}
	for name, value := range map[string]string{
		productGroupField: info.ProductGroup,
		"Subsystem":       info.Subsystem,
		"Urgency":         urgencyValue,
		"Company":         companyValue,
		"Production/Test": environmentValue,
	} {
		fieldID := resolveFieldID(name, meta, registry)
		if fieldID == "" {
			log.Warn().Str("field", name).Msg("No field id resolved, skipping field")
			continue
		}
		var fm *jira.FieldMeta
		if meta != nil {
			if m, ok := meta.Fields[fieldID]; ok {
				fm = &m
			}
		}
		// Select fields whose metadata omits the option list still need
		// option ids; fetch them separately.
		if fm != nil && fm.IsSelect() && len(fm.AllowedValues) == 0 {
			options, err := c.client.GetFieldOptions(ctx, errorProjectKey, errorIssueType, fieldID)
			if err != nil {
				log.Warn().Err(err).Str("field", name).Msg("Option lookup failed, sending value as-is")
			} else {
				fm.AllowedValues = options
			}
		}
		fields[fieldID] = encodeFieldValue(value, fm)
	}

	clmKey, err := c.client.CreateIssue(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("failed to create error issue: %w", err)
	}
	log.Info().Str("source", sourceKey).Str("clm_error", clmKey).Msg("Created CLM error")

	if err := c.client.CreateLink(ctx, clmLinkTypeName, clmKey, sourceKey); err != nil {
		log.Warn().Err(err).Str("source", sourceKey).Str("clm_error", clmKey).
			Msg("Created error ticket but failed to link it")
	}
	return clmKey, nil
}
