package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(srv *httptest.Server) Client {
	return NewClient(Config{BaseURL: srv.URL, Token: "test-token"})
}

func TestSearchIssuesPagination(t *testing.T) {
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			StartAt int `json:"startAt"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		pages++

		issues := make([]IssueDTO, 0, searchPageSize)
		count := searchPageSize
		if body.StartAt >= searchPageSize {
			count = 50
		}
		for i := 0; i < count; i++ {
			issues = append(issues, IssueDTO{Key: fmt.Sprintf("CLM-%d", body.StartAt+i)})
		}
		json.NewEncoder(w).Encode(SearchResponse{
			Total:   150,
			StartAt: body.StartAt,
			Issues:  issues,
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv).SearchIssues(context.Background(), "project = CLM", SearchOptions{})
	if err != nil {
		t.Fatalf("SearchIssues: %v", err)
	}
	if len(got) != 150 {
		t.Errorf("expected 150 issues, got %d", len(got))
	}
	if pages != 2 {
		t.Errorf("expected 2 pages, got %d", pages)
	}
	if got[149].Key != "CLM-149" {
		t.Errorf("unexpected last key %s", got[149].Key)
	}
}

func TestSearchIssuesRejectedQueryReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["bad jql"]}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	got, err := newTestClient(srv).SearchIssues(context.Background(), "garbage ===", SearchOptions{})
	if err != nil {
		t.Fatalf("4xx should not surface as an error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d issues", len(got))
	}
}

func TestSearchIssuesRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(SearchResponse{
			Total:  1,
			Issues: []IssueDTO{{Key: "CLM-1"}},
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv).SearchIssues(context.Background(), "project = CLM", SearchOptions{})
	if err != nil {
		t.Fatalf("SearchIssues: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(got) != 1 || got[0].Key != "CLM-1" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestGetFilterJQL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/filter/114473" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"id":"114473","jql":"project = CLM AND status = Authorized"}`)
	}))
	defer srv.Close()

	jql, err := newTestClient(srv).GetFilterJQL(context.Background(), "114473")
	if err != nil {
		t.Fatalf("GetFilterJQL: %v", err)
	}
	if jql != "project = CLM AND status = Authorized" {
		t.Errorf("unexpected jql %q", jql)
	}
}

func TestCheckConnectionRedirectMeansVPN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://sso.example.com/login", http.StatusFound)
	}))
	defer srv.Close()

	err := newTestClient(srv).CheckConnection(context.Background())
	if err == nil {
		t.Fatal("expected an error for a redirecting server")
	}
}

func TestCheckConnectionBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/api/2/myself" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(srv).CheckConnection(context.Background())
	if err == nil {
		t.Fatal("expected an auth error")
	}
}

func TestGetCreateMetaCached(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"projects":[{"key":"CLM","issuetypes":[{"name":"Error","fields":{
			"customfield_13004":{"name":"Urgency","required":true,
				"schema":{"type":"option","custom":"com.atlassian.jira.plugin.system.customfieldtypes:select"},
				"allowedValues":[{"id":"10101","value":"B - High"}]}
		}}]}]}`)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	for i := 0; i < 3; i++ {
		meta, err := client.GetCreateMeta(context.Background(), "CLM", "Error")
		if err != nil {
			t.Fatalf("GetCreateMeta: %v", err)
		}
		field, ok := meta.Fields["customfield_13004"]
		if !ok {
			t.Fatal("missing field customfield_13004")
		}
		if !field.IsSelect() {
			t.Error("expected a select field")
		}
	}
	if calls != 1 {
		t.Errorf("expected metadata to be fetched once, got %d calls", calls)
	}

	opts, err := client.GetFieldOptions(context.Background(), "CLM", "Error", "customfield_13004")
	if err != nil {
		t.Fatalf("GetFieldOptions: %v", err)
	}
	if len(opts) != 1 || opts[0].Display() != "B - High" {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestSprintListUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want SprintList
	}{
		{
			name: "object array",
			in:   `[{"id":14638,"name":"NBSS 25Q1","state":"ACTIVE"}]`,
			want: SprintList{{ID: 14638, Name: "NBSS 25Q1", State: "ACTIVE"}},
		},
		{
			name: "single object",
			in:   `{"id":14639,"name":"NBSS 25Q2"}`,
			want: SprintList{{ID: 14639, Name: "NBSS 25Q2"}},
		},
		{
			name: "greenhopper string",
			in:   `["com.atlassian.greenhopper.service.sprint.Sprint@1a[id=14640,rapidViewId=12,state=FUTURE,name=NBSS 25Q3,startDate=<null>]"]`,
			want: SprintList{{ID: 14640, Name: "NBSS 25Q3", State: "FUTURE"}},
		},
		{
			name: "greenhopper string without name",
			in:   `["Sprint@1a[id=14641,state=CLOSED]"]`,
			want: SprintList{{ID: 14641, Name: "Sprint 14641", State: "CLOSED"}},
		},
		{
			name: "null",
			in:   `null`,
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got SprintList
			if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d sprints, got %d", len(tc.want), len(got))
			}
			for i := range got {
				if got[i].ID != tc.want[i].ID || got[i].Name != tc.want[i].Name {
					t.Errorf("sprint %d: got %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestLinkPeer(t *testing.T) {
	link := LinkDTO{
		InwardIssue:  &IssueRefDTO{Key: "CLM-1"},
		OutwardIssue: &IssueRefDTO{Key: "EST-2"},
	}
	if got := link.Peer("CLM-1"); got != "EST-2" {
		t.Errorf("Peer(CLM-1) = %q", got)
	}
	if got := link.Peer("EST-2"); got != "CLM-1" {
		t.Errorf("Peer(EST-2) = %q", got)
	}
}
