package defra

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy_500", http.StatusInternalServerError, true},
		{"unhealthy_503", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health-check" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := NewClient(server.URL)
			err := client.HealthCheck(context.Background())

			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_HealthCheck_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestClient_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/graphql" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content-type: %s", ct)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"ScanSession": [{"_docID": "abc123", "book_name": "Joy of Cooking"}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Execute(context.Background(), `{ ScanSession { _docID book_name } }`, nil)

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Error() != "" {
		t.Errorf("unexpected GraphQL error: %s", resp.Error())
	}
	if resp.Data == nil {
		t.Error("expected data in response")
	}
}

func TestClient_Execute_GraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors": [{"message": "field not found"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Execute(context.Background(), `{ Bogus { _docID } }`, nil)

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Error() != "field not found" {
		t.Errorf("Error() = %q, want %q", resp.Error(), "field not found")
	}
}

func TestClient_Execute_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Execute(context.Background(), `{ ScanSession { _docID } }`, nil); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestClient_Create(t *testing.T) {
	var receivedQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req GQLRequest
		json.Unmarshal(body, &req)
		receivedQuery = req.Query

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"create_ScanSession": [{"_docID": "doc-1"}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	id, err := client.Create(context.Background(), "ScanSession", map[string]any{
		"book_name": "Joy of Cooking",
		"status":    "active",
	})

	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id != "doc-1" {
		t.Errorf("docID = %q", id)
	}
	if !strings.Contains(receivedQuery, "create_ScanSession") {
		t.Errorf("query missing mutation name: %s", receivedQuery)
	}
	if !strings.Contains(receivedQuery, `book_name: "Joy of Cooking"`) {
		t.Errorf("query missing input field: %s", receivedQuery)
	}
}

func TestClient_Update(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"update_ScanSession": [{"_docID": "doc-1"}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Update(context.Background(), "ScanSession", "doc-1", map[string]any{
		"status": "completed",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}

func TestClient_Upsert(t *testing.T) {
	var receivedQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req GQLRequest
		json.Unmarshal(body, &req)
		receivedQuery = req.Query

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"upsert_Cookbook": [{"_docID": "book-1"}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	id, err := client.Upsert(context.Background(), "Cookbook",
		map[string]any{"name": map[string]any{"_eq": "Joy of Cooking"}},
		map[string]any{"name": "Joy of Cooking"},
		map[string]any{"name": "Joy of Cooking"},
	)

	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if id != "book-1" {
		t.Errorf("docID = %q", id)
	}
	if !strings.Contains(receivedQuery, "upsert_Cookbook") {
		t.Errorf("query missing mutation name: %s", receivedQuery)
	}
}

func TestMapToGraphQLInput(t *testing.T) {
	t.Run("escapes strings via json", func(t *testing.T) {
		got, err := mapToGraphQLInput(map[string]any{"title": `He said "simmer"`})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := `{title: "He said \"simmer\""}`
		if got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("string slices", func(t *testing.T) {
		got, err := mapToGraphQLInput(map[string]any{"ids": []string{"a", "b"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != `{ids: ["a", "b"]}` {
			t.Errorf("got %s", got)
		}
	})

	t.Run("nested maps", func(t *testing.T) {
		got, err := mapToGraphQLInput(map[string]any{"filter": map[string]any{"_eq": "x"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != `{filter: {_eq: "x"}}` {
			t.Errorf("got %s", got)
		}
	})
}
