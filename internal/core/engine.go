package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultSubscriberBuffer is the per-subscriber delivery buffer.
	DefaultSubscriberBuffer = 64

	BotSender    = "bot"
	SystemSender = "system"

	JoinedText = "A new user has joined the chat."
	LeftText   = "A user has left the chat."
)

// Engine is the broadcast engine of one room. A single goroutine started by
// Run owns the command stream, so subscribe, unsubscribe and publish are
// applied one at a time in the order the loop receives them.
type Engine struct {
	name     string
	registry *Registry
	codec    *Codec
	buffer   int
	commands chan command
	done     chan struct{}
	log      *zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithName labels the engine in logs.
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithLogger sets the engine logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.log = logger
		}
	}
}

// WithSubscriberBuffer sets how many deliveries a subscriber may lag behind
// before it is evicted.
func WithSubscriberBuffer(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.buffer = n
		}
	}
}

// WithCodec replaces the codec, mainly to pin ids and clocks in tests.
func WithCodec(c *Codec) Option {
	return func(e *Engine) {
		if c != nil {
			e.codec = c
		}
	}
}

// NewEngine creates an engine. Call Run before using it.
func NewEngine(opts ...Option) *Engine {
	nop := zerolog.Nop()
	e := &Engine{
		registry: NewRegistry(),
		codec:    NewCodec(),
		buffer:   DefaultSubscriberBuffer,
		commands: make(chan command),
		done:     make(chan struct{}),
		log:      &nop,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the room name the engine was created for.
func (e *Engine) Name() string {
	return e.name
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Subscribers returns the number of registered subscribers.
func (e *Engine) Subscribers() int {
	return e.registry.Len()
}

// Run processes commands until ctx is cancelled. It must be called once.
// On exit every subscription is closed and later calls fail with ErrRoomClosed.
func (e *Engine) Run(ctx context.Context) {
	defer func() {
		close(e.done)
		e.registry.Drain()
		e.log.Debug().Str("room", e.name).Msg("room engine stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.commands:
			cmd.reply <- e.handle(cmd)
		}
	}
}

// Subscribe registers a new subscriber and announces it to the whole room,
// the newcomer included.
func (e *Engine) Subscribe(ctx context.Context) (*Subscription, error) {
	sub := NewSubscription(uuid.NewString(), e.buffer)
	res := e.submit(ctx, command{kind: commandSubscribe, sub: sub})
	if res.err != nil {
		return nil, res.err
	}
	return sub, nil
}

// Unsubscribe removes sub and announces the departure to the remaining room.
// Only the first call for a subscription has an effect.
func (e *Engine) Unsubscribe(sub *Subscription) {
	if sub == nil || !sub.markUnsubscribed() {
		return
	}
	if res := e.submit(context.Background(), command{kind: commandUnsubscribe, sub: sub}); res.err != nil {
		sub.Close()
	}
}

// Publish stamps a new envelope and hands it to every current subscriber.
// It does not wait for subscribers to consume it.
func (e *Engine) Publish(ctx context.Context, class Class, sender, text string) (Envelope, error) {
	res := e.submit(ctx, command{
		kind:   commandPublish,
		class:  class,
		sender: sender,
		text:   text,
	})
	return res.env, res.err
}

func (e *Engine) submit(ctx context.Context, cmd command) commandResult {
	cmd.reply = make(chan commandResult, 1)
	select {
	case e.commands <- cmd:
	case <-e.done:
		return commandResult{err: ErrRoomClosed}
	case <-ctx.Done():
		return commandResult{err: ctx.Err()}
	}
	return <-cmd.reply
}

func (e *Engine) handle(cmd command) commandResult {
	switch cmd.kind {
	case commandSubscribe:
		e.registry.Add(cmd.sub)
		e.log.Debug().Str("room", e.name).Str("subscriber_id", cmd.sub.ID()).
			Int("subscribers", e.registry.Len()).Msg("subscriber joined")
		return e.announce(ClassBot, BotSender, JoinedText)
	case commandUnsubscribe:
		e.registry.Remove(cmd.sub)
		cmd.sub.Close()
		e.log.Debug().Str("room", e.name).Str("subscriber_id", cmd.sub.ID()).
			Int("subscribers", e.registry.Len()).Msg("subscriber left")
		return e.announce(ClassSystem, SystemSender, LeftText)
	case commandPublish:
		env, err := e.codec.Encode(cmd.class, cmd.sender, cmd.text)
		if err != nil {
			return commandResult{err: err}
		}
		if err := e.fanOut(env); err != nil {
			return commandResult{err: err}
		}
		return commandResult{env: env}
	default:
		return commandResult{err: fmt.Errorf("unknown command %d", cmd.kind)}
	}
}

func (e *Engine) announce(class Class, sender, text string) commandResult {
	env, err := e.codec.Encode(class, sender, text)
	if err != nil {
		return commandResult{err: err}
	}
	if err := e.fanOut(env); err != nil {
		e.log.Error().Err(err).Str("room", e.name).Msg("announce failed")
	}
	return commandResult{env: env}
}

func (e *Engine) fanOut(env Envelope) error {
	payload, err := e.codec.Serialize(env)
	if err != nil {
		return fmt.Errorf("serialize envelope: %w", err)
	}

	d := Delivery{Envelope: env, Payload: payload}
	evicted := e.registry.ForEach(func(s Subscriber) error {
		return s.Deliver(d)
	})
	if evicted > 0 {
		e.log.Warn().Str("room", e.name).Int("evicted", evicted).Msg("dropped unreachable subscribers")
	}
	return nil
}
