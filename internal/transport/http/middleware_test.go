package http

import (
	"net/http"
	"testing"
)

func TestRequestIDAssignedAndEchoed(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Fatal("expected a generated request id")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set(HeaderRequestID, "trace-123")
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(HeaderRequestID); got != "trace-123" {
		t.Fatalf("expected incoming request id to be kept, got %q", got)
	}
}
