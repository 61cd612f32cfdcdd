package lifecycle

import (
	"regexp"
	"strconv"
	"strings"

	"clm-insight/internal/jira"
)

// Custom-field ids of the error-tracking project workflow.
const (
	fieldCurrentSprint    = "customfield_12405"
	fieldInvestment       = "customfield_17813"
	fieldInvestmentText   = "customfield_17812"
	fieldSubtype          = "customfield_12409"
	fieldWorkaround       = "customfield_12415"
	fieldSubsystemVersion = "customfield_12408"
	fieldSummaryCopy      = "customfield_12397"
)

// Fixed option ids used by the Studying and Received transitions.
const (
	valueCurrentSprint  = "12010"
	valueInvestment     = "169086"
	valueInvestmentText = "170958"
	valueSubtype        = "35200"
	valueWorkaround     = "12030"

	defaultVersionID = "22550"
)

// subsystemVersionOptions is the known option set of the subsystem-version
// field. The transition endpoint does not expose create-metadata, so the
// list is fixed here; latestVersionID still picks the numerically newest.
var subsystemVersionOptions = []jira.FieldOption{
	{ID: "22400", Value: "NBSS 5.2.0"},
	{ID: "22450", Value: "NBSS 5.3.0"},
	{ID: "22500", Value: "NBSS 5.4.0"},
	{ID: "22550", Value: "NBSS 5.5.0"},
}

var versionNumberPattern = regexp.MustCompile(`(\d+(\.\d+)*)`)

// latestVersionID returns the option id of the highest version among the
// options, comparing dotted version numbers componentwise.
func latestVersionID(options []jira.FieldOption) string {
	var bestID string
	var bestParts []int
	for _, opt := range options {
		m := versionNumberPattern.FindStringSubmatch(opt.Display())
		if m == nil {
			continue
		}
		var parts []int
		ok := true
		for _, piece := range strings.Split(m[1], ".") {
			n, err := strconv.Atoi(piece)
			if err != nil {
				ok = false
				break
			}
			parts = append(parts, n)
		}
		if !ok {
			continue
		}
		if bestID == "" || versionLess(bestParts, parts) {
			bestID = opt.ID
			bestParts = parts
		}
	}
	if bestID == "" {
		return defaultVersionID
	}
	return bestID
}

func versionLess(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// studyingFieldVariants returns the payload encodings tried in order when
// transitioning a ticket into Studying. Jira instances differ in how they
// expect sprint and investment fields, so the driver walks the ladder
// until one succeeds. The final empty map means "transition without
// fields".
func studyingFieldVariants() []map[string]interface{} {
	return []map[string]interface{}{
		{
			fieldCurrentSprint:  []string{valueCurrentSprint},
			fieldInvestment:     []string{valueInvestment},
			fieldInvestmentText: []string{valueInvestmentText},
		},
		{
			fieldCurrentSprint:  valueCurrentSprint,
			fieldInvestment:     valueInvestment,
			fieldInvestmentText: valueInvestmentText,
		},
		{
			fieldCurrentSprint:  map[string]string{"id": valueCurrentSprint},
			fieldInvestment:     map[string]string{"id": valueInvestment},
			fieldInvestmentText: map[string]string{"id": valueInvestmentText},
		},
		{
			fieldCurrentSprint: []string{valueCurrentSprint},
		},
		{},
	}
}

// receivedFieldVariants returns the payload encodings tried in order when
// transitioning a ticket into Received. summary is copied from the ticket
// itself; versionID is the subsystem-version option to set.
func receivedFieldVariants(summary, versionID string) []map[string]interface{} {
	return []map[string]interface{}{
		{
			fieldSubtype:          map[string]string{"id": valueSubtype},
			fieldSummaryCopy:      summary,
			fieldSubsystemVersion: []string{versionID},
			fieldWorkaround:       map[string]string{"id": valueWorkaround},
			fieldInvestment:       []string{valueInvestment},
			fieldInvestmentText:   []string{valueInvestmentText},
		},
		{
			fieldSubtype:          map[string]string{"id": valueSubtype},
			fieldSummaryCopy:      summary,
			fieldSubsystemVersion: versionID,
			fieldWorkaround:       map[string]string{"id": valueWorkaround},
		},
		{
			fieldSubtype:          map[string]string{"id": valueSubtype},
			fieldSummaryCopy:      summary,
			fieldSubsystemVersion: []string{versionID},
			fieldWorkaround:       map[string]string{"id": valueWorkaround},
		},
	}
}

// Display names of the custom fields set at creation time, with the ids
// used when neither create-metadata nor the field registry knows them.
var creationFieldFallbacks = map[string]string{
	"Product Group":   "customfield_10509",
	"Subsystem":       "customfield_14900",
	"Urgency":         "customfield_13004",
	"Company":         "customfield_16300",
	"Production/Test": "customfield_17200",
}

// resolveFieldID finds a custom-field id by display name, preferring
// create-metadata, then the global field registry, then the fixed
// fallback table.
func resolveFieldID(name string, meta *jira.CreateMeta, registry []jira.FieldDTO) string {
	if meta != nil {
		for id, fm := range meta.Fields {
			if strings.EqualFold(fm.Name, name) && strings.HasPrefix(id, "customfield_") {
				return id
			}
		}
	}
	for _, f := range registry {
		if strings.EqualFold(f.Name, name) && strings.HasPrefix(f.ID, "customfield_") {
			return f.ID
		}
	}
	return creationFieldFallbacks[name]
}

// encodeFieldValue encodes a creation field value according to its
// metadata. Select fields take {id: optionID} when the value matches an
// allowed option and {value: v} otherwise; plain fields take the raw
// string.
func encodeFieldValue(value string, fm *jira.FieldMeta) interface{} {
	if fm == nil || !fm.IsSelect() {
		return value
	}
	for _, opt := range fm.AllowedValues {
		if strings.EqualFold(opt.Display(), value) {
			return map[string]string{"id": opt.ID}
		}
	}
	return map[string]string{"value": value}
}
