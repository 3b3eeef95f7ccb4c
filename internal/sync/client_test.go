package sync

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/floorsync/floorsync/internal/api"
	"github.com/floorsync/floorsync/internal/event"
	"github.com/floorsync/floorsync/internal/job"
	"github.com/floorsync/floorsync/internal/liveness"
	"github.com/floorsync/floorsync/internal/store"
)

// newMaster spins up a real master server and returns a proxy client for it.
func newMaster(t *testing.T, key string) (*Client, *store.Store) {
	t.Helper()

	s := store.Open(filepath.Join(t.TempDir(), "db.json"), store.Options{})
	bus := event.New()
	tracker := liveness.New(0, bus)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := api.NewHandler(s, tracker, bus, "test", 3030)
	srv := httptest.NewServer(api.NewServer(context.Background(), h, func() string { return key }, logger, 0))
	t.Cleanup(srv.Close)

	c := New(srv.Listener.Addr().String(), func() string { return key })
	return c, s
}

func TestRoundTrip_AddGetUpdateDelete(t *testing.T) {
	c, _ := newMaster(t, "secret")
	ctx := context.Background()

	added, err := c.AddJob(ctx, &job.Job{Type: job.TypeDTF, Description: "via proxy"})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if added.ID == "" || added.JobNumber == "" {
		t.Fatalf("added = %+v, want assigned id and number", added)
	}

	jobs, err := c.GetJobs(ctx)
	if err != nil {
		t.Fatalf("GetJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != added.ID {
		t.Fatalf("jobs = %+v", jobs)
	}

	status := "In Progress"
	updated, err := c.UpdateJob(ctx, added.ID, &job.Patch{Status: &status})
	if err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if updated.Status != "In Progress" {
		t.Errorf("status = %q", updated.Status)
	}

	removed, err := c.DeleteJob(ctx, added.ID)
	if err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if removed != added.ID {
		t.Errorf("removedId = %q, want %q", removed, added.ID)
	}
}

func TestServerErrorMessageSurfaced(t *testing.T) {
	c, _ := newMaster(t, "")
	ctx := context.Background()

	_, err := c.UpdateJob(ctx, "missing", &job.Patch{})
	if err == nil {
		t.Fatal("expected error for unknown id")
	}
	if !strings.Contains(err.Error(), "job not found") {
		t.Errorf("err = %q, want the server-provided message", err)
	}
}

func TestWrongKeySurfacesUnauthorized(t *testing.T) {
	c, _ := newMaster(t, "secret")
	c.keyFn = func() string { return "wrong" }

	_, err := c.GetJobs(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("err = %q, want unauthorized", err)
	}
}

func TestTransportFailureSurfacedAsSingleError(t *testing.T) {
	c := New("127.0.0.1:1", nil) // nothing listens here

	_, err := c.GetJobs(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !strings.Contains(err.Error(), "master unreachable") {
		t.Errorf("err = %q, want master unreachable", err)
	}
}

func TestPing_ReportsMasterRole(t *testing.T) {
	c, _ := newMaster(t, "secret")

	h, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !h.OK || h.Role != "master" {
		t.Errorf("health = %+v", h)
	}
}
