package extsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/service-matching/internal/models"
)

func TestRefreshCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tokens/refresh" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refresh"] != "old-refresh" {
			t.Errorf("unexpected body: %v", body)
		}
		json.NewEncoder(w).Encode(models.Tokens{Access: "new-access", Refresh: "new-refresh"})
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL)
	tokens, err := c.RefreshCredential(context.Background(), "old-refresh")
	if err != nil {
		t.Fatal(err)
	}
	if tokens.Access != "new-access" || tokens.Refresh != "new-refresh" {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
}

func TestRefreshCredentialRejectsEmptyAccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.Tokens{})
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL)
	if _, err := c.RefreshCredential(context.Background(), "r"); err == nil {
		t.Fatal("expected error for empty access token")
	}
}

func TestGetProfileSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/profiles/party-1" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(models.ProfileSummary{Name: "Pat", Contact: "pat@example.com"})
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL)
	p, err := c.GetProfileSummary(context.Background(), "party-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Pat" {
		t.Fatalf("unexpected profile: %+v", p)
	}

	if _, err := c.GetProfileSummary(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for missing profile")
	}
}

func TestCreateAndStartJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/jobs":
			var snap models.EngagementSnapshot
			_ = json.NewDecoder(r.Body).Decode(&snap)
			if snap.SeekerID != "s1" || snap.TotalAmount != 500 {
				t.Errorf("unexpected snapshot: %+v", snap)
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"jobId": "job-42"})
		case "/v1/jobs/job-42/start":
			json.NewEncoder(w).Encode(map[string]string{"status": "started"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewProvisioningClient(srv.URL)
	jobID, err := c.CreateJob(context.Background(), models.EngagementSnapshot{SeekerID: "s1", ResponderID: "r1", TotalAmount: 500})
	if err != nil {
		t.Fatal(err)
	}
	if jobID != "job-42" {
		t.Fatalf("unexpected job id %s", jobID)
	}

	status, err := c.StartJob(context.Background(), jobID)
	if err != nil {
		t.Fatal(err)
	}
	if status != "started" {
		t.Fatalf("unexpected status %s", status)
	}
}

func TestGetRouteDistance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"Ok","routes":[{"distance":4321.5}]}`))
	}))
	defer srv.Close()

	c := NewDirectionsClient(srv.URL)
	m, err := c.GetRouteDistance(context.Background(), models.Coord{Lat: 1, Lng: 2}, models.Coord{Lat: 3, Lng: 4})
	if err != nil {
		t.Fatal(err)
	}
	if m != 4321.5 {
		t.Fatalf("unexpected distance %f", m)
	}
}

func TestGetRouteDistanceNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	c := NewDirectionsClient(srv.URL)
	if _, err := c.GetRouteDistance(context.Background(), models.Coord{}, models.Coord{Lat: 1, Lng: 1}); err == nil {
		t.Fatal("expected error when no route exists")
	}
}
