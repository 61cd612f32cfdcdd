package jira

import (
	"encoding/json"
	"regexp"
	"strconv"
	"time"
)

// SearchResponse is the top-level container for Jira search results.
type SearchResponse struct {
	Total      int        `json:"total"`
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Issues     []IssueDTO `json:"issues"`
}

// IssueDTO represents a single issue in the Jira search response.
type IssueDTO struct {
	ID        string        `json:"id,omitempty"`
	Key       string        `json:"key"`
	Fields    FieldsDTO     `json:"fields"`
	Changelog *ChangelogDTO `json:"changelog,omitempty"`
}

// FieldsDTO contains the issue fields used downstream.
type FieldsDTO struct {
	Project struct {
		Key  string `json:"key"`
		Name string `json:"name,omitempty"`
	} `json:"project"`
	IssueType struct {
		Name    string `json:"name"`
		Subtask bool   `json:"subtask,omitempty"`
	} `json:"issuetype"`
	Status struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		StatusCategory struct {
			Key  string `json:"key,omitempty"`
			Name string `json:"name,omitempty"`
		} `json:"statusCategory"`
	} `json:"status"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`

	// Estimates are in seconds; null means the field was never set.
	OriginalEstimate *int64 `json:"timeoriginalestimate,omitempty"`
	TimeSpent        *int64 `json:"timespent,omitempty"`

	Created    string          `json:"created,omitempty"`
	Components []ComponentDTO  `json:"components,omitempty"`
	Comment    *CommentsDTO    `json:"comment,omitempty"`
	Attachment []AttachmentDTO `json:"attachment,omitempty"`
	IssueLinks []LinkDTO       `json:"issuelinks,omitempty"`
	Subtasks   []IssueRefDTO   `json:"subtasks,omitempty"`
	Sprint     SprintList      `json:"sprint,omitempty"`
}

// ComponentDTO is a component tag on an issue.
type ComponentDTO struct {
	Name string `json:"name"`
}

// CommentsDTO wraps the comment collection.
type CommentsDTO struct {
	Comments []CommentDTO `json:"comments"`
}

// CommentDTO is a single issue comment.
type CommentDTO struct {
	Body string `json:"body"`
}

// AttachmentDTO is a single attachment entry.
type AttachmentDTO struct {
	Filename string `json:"filename,omitempty"`
}

// IssueRefDTO is a bare reference to another issue.
type IssueRefDTO struct {
	ID  string `json:"id,omitempty"`
	Key string `json:"key"`
}

// LinkDTO is a typed directed edge between two issues.
type LinkDTO struct {
	Type struct {
		Name    string `json:"name"`
		Inward  string `json:"inward,omitempty"`
		Outward string `json:"outward,omitempty"`
	} `json:"type"`
	InwardIssue  *IssueRefDTO `json:"inwardIssue,omitempty"`
	OutwardIssue *IssueRefDTO `json:"outwardIssue,omitempty"`
}

// Peer returns the key on the far side of the link relative to selfKey.
func (l LinkDTO) Peer(selfKey string) string {
	if l.InwardIssue != nil && l.InwardIssue.Key != selfKey {
		return l.InwardIssue.Key
	}
	if l.OutwardIssue != nil && l.OutwardIssue.Key != selfKey {
		return l.OutwardIssue.Key
	}
	return ""
}

// SprintDTO is one sprint membership entry.
type SprintDTO struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	State string `json:"state,omitempty"`
}

// SprintList tolerates the three shapes Jira serves for sprint fields:
// an array of objects, a single object, or the legacy greenhopper
// "Sprint@...[id=...,name=...,state=...]" string array.
type SprintList []SprintDTO

var (
	sprintIDPattern    = regexp.MustCompile(`id=(\d+)`)
	sprintNamePattern  = regexp.MustCompile(`name=([^,\]]+)`)
	sprintStatePattern = regexp.MustCompile(`state=([^,\]]+)`)
)

func (s *SprintList) UnmarshalJSON(data []byte) error {
	var objs []SprintDTO
	if err := json.Unmarshal(data, &objs); err == nil {
		*s = objs
		return nil
	}

	var single SprintDTO
	if err := json.Unmarshal(data, &single); err == nil && single.ID != 0 {
		*s = SprintList{single}
		return nil
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err == nil {
		var out SprintList
		for _, item := range raw {
			m := sprintIDPattern.FindStringSubmatch(item)
			if m == nil {
				continue
			}
			id, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			sp := SprintDTO{ID: id, Name: "Sprint " + m[1], State: "unknown"}
			if nm := sprintNamePattern.FindStringSubmatch(item); nm != nil {
				sp.Name = nm[1]
			}
			if st := sprintStatePattern.FindStringSubmatch(item); st != nil {
				sp.State = st[1]
			}
			out = append(out, sp)
		}
		*s = out
		return nil
	}

	// Unknown shape: treat as absent rather than failing the whole issue.
	*s = nil
	return nil
}

// ChangelogDTO contains historical edits.
type ChangelogDTO struct {
	Histories []HistoryDTO `json:"histories"`
}

// HistoryDTO is a single entry in the changelog.
type HistoryDTO struct {
	Created string    `json:"created"`
	Items   []ItemDTO `json:"items"`
}

// ItemDTO is a single field change within a history entry.
type ItemDTO struct {
	Field      string `json:"field"`
	From       string `json:"from"`
	FromString string `json:"fromString"`
	To         string `json:"to"`
	ToString   string `json:"toString"`
}

// TransitionDTO is an available workflow transition.
type TransitionDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FieldOption is an allowed value of a select-list custom field.
type FieldOption struct {
	ID    string `json:"id"`
	Value string `json:"value,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Display returns the human-readable label of the option.
func (o FieldOption) Display() string {
	if o.Value != "" {
		return o.Value
	}
	return o.Name
}

// FieldSchema describes the wire type of a field.
type FieldSchema struct {
	Type   string `json:"type,omitempty"`
	Custom string `json:"custom,omitempty"`
}

// FieldMeta is the create-metadata entry for a single field.
type FieldMeta struct {
	Name          string        `json:"name"`
	Required      bool          `json:"required"`
	Schema        FieldSchema   `json:"schema"`
	AllowedValues []FieldOption `json:"allowedValues,omitempty"`
}

const (
	customTypeSelect      = "com.atlassian.jira.plugin.system.customfieldtypes:select"
	customTypeMultiSelect = "com.atlassian.jira.plugin.system.customfieldtypes:multiselect"
)

// IsSelect reports whether the field takes {id: …} option objects.
func (m FieldMeta) IsSelect() bool {
	return len(m.AllowedValues) > 0 ||
		m.Schema.Custom == customTypeSelect ||
		m.Schema.Custom == customTypeMultiSelect
}

// IsArray reports whether the field takes an array payload.
func (m FieldMeta) IsArray() bool {
	return m.Schema.Type == "array" || m.Schema.Custom == customTypeMultiSelect
}

// CreateMeta is the flattened create-metadata for one project/issue-type pair.
type CreateMeta struct {
	Fields map[string]FieldMeta `json:"fields"`
}

// FieldDTO is an entry of the global field registry.
type FieldDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParseTime is a helper for the strict Jira time format.
func ParseTime(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000-0700", s)
}
