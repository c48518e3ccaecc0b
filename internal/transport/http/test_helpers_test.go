package http

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/room"
)

// startTestServer runs a local-fallback server for the default room.
func startTestServer(t *testing.T, mutate func(*config.Config)) (*httptest.Server, *room.Host) {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}

	disabledLogger := zerolog.New(nil)
	host := room.NewHost(&disabledLogger, core.WithSubscriberBuffer(cfg.SubscriberBuffer))
	opts := HandlerOptions{
		KeepAlive:       cfg.KeepAliveInterval,
		MaxMessageBytes: cfg.MaxMessageBytes,
		RateLimit:       cfg.WSRateLimit,
	}
	server := NewServer(&cfg, NewLocalRoutes(host, cfg.Room.Name, opts, &disabledLogger), nil, opts, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		// Stopping the rooms ends open streams so Close does not wait on them.
		host.Close()
		ts.Close()
	})
	return ts, host
}

type sseEvent struct {
	id    string
	event string
	data  string
}

type sseStream struct {
	resp   *http.Response
	reader *bufio.Reader
	cancel context.CancelFunc
}

func openSSE(t *testing.T, url string) *sseStream {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("open stream: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		cancel()
		t.Fatalf("unexpected stream status: %d", resp.StatusCode)
	}
	s := &sseStream{resp: resp, reader: bufio.NewReader(resp.Body), cancel: cancel}
	t.Cleanup(s.Close)
	return s
}

func (s *sseStream) Close() {
	s.cancel()
	_ = s.resp.Body.Close()
}

// next reads one event, including keep-alive pings.
func (s *sseStream) next(t *testing.T) sseEvent {
	t.Helper()

	type result struct {
		ev  sseEvent
		err error
	}
	done := make(chan result, 1)
	go func() {
		var ev sseEvent
		for {
			line, err := s.reader.ReadString('\n')
			if err != nil {
				done <- result{err: err}
				return
			}
			line = strings.TrimRight(line, "\n")
			if line == "" {
				done <- result{ev: ev}
				return
			}
			key, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch key {
			case "id":
				ev.id = value
			case "event":
				ev.event = value
			case "data":
				ev.data = value
			}
		}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("read event: %v", r.err)
		}
		return r.ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return sseEvent{}
}

// envelope reads events until a non-ping one arrives and decodes it.
func (s *sseStream) envelope(t *testing.T) (sseEvent, proto.Envelope) {
	t.Helper()

	for {
		ev := s.next(t)
		if ev.event == proto.EventPing {
			continue
		}
		var env proto.Envelope
		if err := json.Unmarshal([]byte(ev.data), &env); err != nil {
			t.Fatalf("decode envelope %q: %v", ev.data, err)
		}
		return ev, env
	}
}

func postMessage(t *testing.T, url, body string) (int, string) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post message: %v", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func waitSubscribers(t *testing.T, host *room.Host, name string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if host.Engine(name).Subscribers() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers, got %d", want, host.Engine(name).Subscribers())
}
