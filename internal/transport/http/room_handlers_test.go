package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestSSEJoinPublishLeave(t *testing.T) {
	ts, host := startTestServer(t, nil)
	base := ts.URL + RoomPrefix

	first := openSSE(t, base+"/events")
	if ct := first.resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cc := first.resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Fatalf("unexpected cache control %q", cc)
	}

	ev, env := first.envelope(t)
	if ev.event != proto.TypeBot || env.Type != proto.TypeBot || env.Text != core.JoinedText {
		t.Fatalf("expected bot join, got %s %+v", ev.event, env)
	}

	status, body := postMessage(t, base+"/message", `{"user":"alice","text":"hi"}`)
	if status != http.StatusOK || strings.TrimSpace(body) != `{"ok":true}` {
		t.Fatalf("unexpected publish response %d: %s", status, body)
	}

	ev, env = first.envelope(t)
	if ev.event != proto.TypeUser || env.User != "alice" || env.Text != "hi" {
		t.Fatalf("unexpected message event: %s %+v", ev.event, env)
	}
	if ev.id != env.ID || env.ID == "" || env.TS == "" {
		t.Fatalf("envelope must carry server id and timestamp: %+v (event id %q)", env, ev.id)
	}

	second := openSSE(t, base+"/events")
	first.envelope(t)
	second.envelope(t)

	first.Close()
	waitSubscribers(t, host, config.Default().Room.Name, 1)

	ev, env = second.envelope(t)
	if ev.event != proto.TypeSystem || env.Type != proto.TypeSystem || env.Text != core.LeftText {
		t.Fatalf("expected system leave, got %s %+v", ev.event, env)
	}
}

func TestSSESubscribersShareEnvelope(t *testing.T) {
	ts, _ := startTestServer(t, nil)
	base := ts.URL + RoomPrefix

	a := openSSE(t, base+"/events")
	a.envelope(t)
	b := openSSE(t, base+"/events")
	a.envelope(t)
	b.envelope(t)

	if status, body := postMessage(t, base+"/message", `{"user":"bob","text":"same"}`); status != http.StatusOK {
		t.Fatalf("publish failed %d: %s", status, body)
	}

	_, ea := a.envelope(t)
	_, eb := b.envelope(t)
	if ea.ID != eb.ID || ea.Text != "same" {
		t.Fatalf("expected identical envelopes, got %+v and %+v", ea, eb)
	}
}

func TestPublishRejectsInvalidPayload(t *testing.T) {
	ts, _ := startTestServer(t, nil)
	base := ts.URL + RoomPrefix

	stream := openSSE(t, base+"/events")
	stream.envelope(t)

	bodies := []string{
		`{"user":"alice","text":""}`,
		`{"text":"hi"}`,
		`{"user":"   ","text":"hi"}`,
		`{"user":1,"text":"hi"}`,
		`not json`,
	}
	for _, body := range bodies {
		status, resp := postMessage(t, base+"/message", body)
		if status != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d: %s", body, status, resp)
		}
	}

	if status, _ := postMessage(t, base+"/message", `{"user":"alice","text":"marker"}`); status != http.StatusOK {
		t.Fatalf("marker publish failed: %d", status)
	}
	_, env := stream.envelope(t)
	if env.Text != "marker" {
		t.Fatalf("rejected payloads must not be broadcast, got %+v", env)
	}
}

func TestPublishRejectsOversizedBody(t *testing.T) {
	ts, _ := startTestServer(t, func(cfg *config.Config) { cfg.MaxMessageBytes = 64 })

	body := `{"user":"alice","text":"` + strings.Repeat("x", 128) + `"}`
	if status, _ := postMessage(t, ts.URL+RoomPrefix+"/message", body); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", status)
	}
}

func TestWrongMethodIsRejected(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+RoomPrefix+"/message", strings.NewReader(`{}`))
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestSSEKeepAlive(t *testing.T) {
	ts, _ := startTestServer(t, func(cfg *config.Config) { cfg.KeepAliveInterval = 20 * time.Millisecond })

	stream := openSSE(t, ts.URL+RoomPrefix+"/events")
	stream.envelope(t)

	if ev := stream.next(t); ev.event != proto.EventPing || ev.data != "" {
		t.Fatalf("expected empty ping event, got %+v", ev)
	}
}

func TestStatsReportsSubscribers(t *testing.T) {
	ts, host := startTestServer(t, nil)

	stream := openSSE(t, ts.URL+RoomPrefix+"/events")
	stream.envelope(t)
	waitSubscribers(t, host, "lobby", 1)

	resp, err := ts.Client().Get(ts.URL + RoomPrefix + "/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
