package api

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

// readSSEFrame reads one event frame (up to the blank separator line).
func readSSEFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event stream: %v", err)
		}
		if line == "\n" {
			return b.String()
		}
		b.WriteString(line)
	}
}

func TestStreamEvents_DeliversJobUpdates(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	reader := bufio.NewReader(resp.Body)

	// The first frame is the peer snapshot; it also proves the subscription
	// is live before the mutation below.
	first := readSSEFrame(t, reader)
	if !strings.Contains(first, "event: lan-clients") {
		t.Fatalf("first frame = %q, want initial lan-clients snapshot", first)
	}

	created := doRequest(t, srv, http.MethodPost, "/jobs",
		[]byte(`{"type":"DTF","description":"streamed"}`), "")
	created.Body.Close()

	// Peer-table churn may interleave lan-clients frames; the context
	// deadline bounds the wait.
	for {
		frame := readSSEFrame(t, reader)
		if !strings.Contains(frame, "event: jobs-updated") {
			continue
		}
		if !strings.Contains(frame, `"action":"add"`) {
			t.Errorf("frame = %q, want an add action", frame)
		}
		return
	}
}
