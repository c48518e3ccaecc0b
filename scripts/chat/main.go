package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:8080/api/room", "room base URL")
	user := flag.String("user", "cli-user", "username")
	transport := flag.String("transport", "sse", "subscriber transport (sse, websocket)")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	fmt.Printf("Connected to %s as %s over %s\n", *base, *user, *transport)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	switch *transport {
	case "sse":
		go func() {
			defer cancel()
			if err := readEvents(ctx, *base+"/events"); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("events: %v", err)
			}
		}()
		writeLoop(ctx, func(text string) error {
			return postMessage(ctx, *base+"/message", proto.PublishRequest{User: *user, Text: text})
		})
	case "websocket":
		wsURL := strings.Replace(*base, "http", "ws", 1) + "/ws"
		conn, _, err := websocket.Dial(ctx, wsURL, nil)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		go func() {
			defer cancel()
			readFrames(ctx, conn)
		}()
		writeLoop(ctx, func(text string) error {
			return wsjson.Write(ctx, conn, proto.PublishRequest{User: *user, Text: text})
		})
	default:
		return fmt.Errorf("unknown transport %q", *transport)
	}
	return nil
}

func readEvents(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok || data == "" {
			continue
		}
		var env proto.Envelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			log.Printf("decode event: %v", err)
			continue
		}
		printEnvelope(env)
	}
	return scanner.Err()
}

func readFrames(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame map[string]json.RawMessage
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		raw, _ := json.Marshal(frame)
		if _, isError := frame["error"]; isError {
			var ef proto.ErrorFrame
			if err := json.Unmarshal(raw, &ef); err == nil && ef.Error != nil {
				fmt.Printf("! %s: %s\n", ef.Error.Code, ef.Error.Msg)
			}
			continue
		}
		var env proto.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("decode frame: %v", err)
			continue
		}
		printEnvelope(env)
	}
}

func printEnvelope(env proto.Envelope) {
	switch env.Type {
	case proto.TypeUser:
		fmt.Printf("[%s] %s: %s\n", env.TS, env.User, env.Text)
	default:
		fmt.Printf("[%s] * %s\n", env.TS, env.Text)
	}
}

func postMessage(ctx context.Context, url string, msg proto.PublishRequest) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var er proto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return fmt.Errorf("%s: %s", resp.Status, er.Error)
	}
	return nil
}

func writeLoop(ctx context.Context, send func(text string) error) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := send(text); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
