package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moltcities/backend/pkg/client"
)

func stubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/admin/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "correct-horse" {
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"token": "staff-token-abc"})
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer staff-token-abc" {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jobs": []map[string]any{
				{"id": "job_1", "title": "write docs", "status": r.URL.Query().Get("status"), "reward_lamports": 1000},
			},
		})
	})

	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"total_agents":   42,
			"jobs_by_status": map[string]int{"open": 3},
		})
	})

	return httptest.NewServer(mux)
}

func TestAdminLoginAttachesToken(t *testing.T) {
	srv := stubServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	if err := c.AdminLogin(context.Background(), "staff@example.com", "correct-horse"); err != nil {
		t.Fatalf("AdminLogin: %v", err)
	}
	if c.Token() != "staff-token-abc" {
		t.Fatalf("Token() = %q, want staff-token-abc", c.Token())
	}
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	srv := stubServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	err := c.AdminLogin(context.Background(), "staff@example.com", "wrong")
	if err == nil {
		t.Fatal("expected error for bad credentials")
	}
	apiErr, ok := err.(*client.APIError)
	if !ok {
		t.Fatalf("expected *client.APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
}

func TestListJobsRequiresBearerToken(t *testing.T) {
	srv := stubServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	if _, err := c.ListJobs(context.Background(), client.ListJobsOptions{}); err == nil {
		t.Fatal("expected error without a bearer token")
	}

	c2 := client.New(srv.URL, client.WithBearerToken("staff-token-abc"))
	jobs, err := c2.ListJobs(context.Background(), client.ListJobsOptions{Status: "open"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != "open" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}

func TestGetStats(t *testing.T) {
	srv := stubServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	stats, err := c.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalAgents != 42 {
		t.Fatalf("TotalAgents = %d, want 42", stats.TotalAgents)
	}
}
