package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/irsalhamdi/edtech-platform/gateway"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)

	return NewClient(Config{
		URL:      srv.URL,
		APIKey:   "anon-key",
		Timeout:  5 * time.Second,
		LimitRPS: 1000,
		Burst:    1000,
		Log:      log,
	})
}

func TestSelectBuildsFilters(t *testing.T) {
	var gotPath, gotQuery, gotKey string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":"c1","title":"Go for Backends"}]`)
	}))

	rows, err := c.Select(context.Background(), "courses", gateway.Eq("status", "published"))
	if err != nil {
		t.Fatal(err)
	}

	if gotPath != "/courses" {
		t.Fatalf("expected path /courses, got %s", gotPath)
	}
	if gotQuery != "status=eq.published" {
		t.Fatalf("expected an eq operand, got %s", gotQuery)
	}
	if gotKey != "anon-key" {
		t.Fatalf("the api key header should be set, got %q", gotKey)
	}
	if len(rows) != 1 || rows[0]["id"] != "c1" {
		t.Fatalf("rows were not decoded: %v", rows)
	}
}

func TestSelectInOperand(t *testing.T) {
	var gotQuery string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[]`)
	}))

	if _, err := c.Select(context.Background(), "profiles", gateway.In("id", "a", "b")); err != nil {
		t.Fatal(err)
	}

	if gotQuery != "id=in.%28a%2Cb%29" {
		t.Fatalf("expected an in operand, got %s", gotQuery)
	}
}

func TestInsertConflict(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	err := c.Insert(context.Background(), "enrollments", gateway.Record{"id": "e1"})
	if !errors.Is(err, gateway.ErrConflict) {
		t.Fatalf("a 409 should surface as a conflict, got %v", err)
	}
}

func TestInsertSendsMinimalPreference(t *testing.T) {
	var gotPrefer, gotMethod string
	var gotBody gateway.Record

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefer = r.Header.Get("Prefer")
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))

	rec := gateway.Record{"id": "e1", "progress": float64(0)}
	if err := c.Insert(context.Background(), "enrollments", rec); err != nil {
		t.Fatal(err)
	}

	if gotMethod != http.MethodPost || gotPrefer != "return=minimal" {
		t.Fatalf("unexpected request shape: %s %s", gotMethod, gotPrefer)
	}
	if gotBody["id"] != "e1" {
		t.Fatalf("body was not sent: %v", gotBody)
	}
}

func TestUpdateTargetsRowByID(t *testing.T) {
	var gotMethod, gotQuery string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.Update(context.Background(), "enrollments", "e1", gateway.Record{"progress": 60}); err != nil {
		t.Fatal(err)
	}

	if gotMethod != http.MethodPatch || gotQuery != "id=eq.e1" {
		t.Fatalf("unexpected request shape: %s %s", gotMethod, gotQuery)
	}
}

func TestDeleteTargetsRowByID(t *testing.T) {
	var gotMethod, gotQuery string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.Delete(context.Background(), "courses", "c1"); err != nil {
		t.Fatal(err)
	}

	if gotMethod != http.MethodDelete || gotQuery != "id=eq.c1" {
		t.Fatalf("unexpected request shape: %s %s", gotMethod, gotQuery)
	}
}

func TestRemoteErrorsAreReported(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	}))

	if _, err := c.Select(context.Background(), "courses"); err == nil {
		t.Fatal("a 403 should surface as an error")
	}
}

func TestTokenSourceOverridesBearer(t *testing.T) {
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)

	c := NewClient(Config{
		URL:      srv.URL,
		APIKey:   "anon-key",
		Timeout:  5 * time.Second,
		LimitRPS: 1000,
		Burst:    1000,
		Tokens:   oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "user-token"}),
		Log:      log,
	})

	if _, err := c.Select(context.Background(), "courses"); err != nil {
		t.Fatal(err)
	}

	if gotAuth != "Bearer user-token" {
		t.Fatalf("the user token should win over the api key, got %q", gotAuth)
	}
}
