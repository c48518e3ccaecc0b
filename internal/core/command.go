package core

// commandKind describes what a caller wants the engine to do.
type commandKind int

const (
	// commandSubscribe registers a subscription and announces it.
	commandSubscribe commandKind = iota
	// commandUnsubscribe removes a subscription and announces the departure.
	commandUnsubscribe
	// commandPublish encodes a message and fans it out.
	commandPublish
)

// command is a request processed by the engine loop.
type command struct {
	kind   commandKind
	sub    *Subscription
	class  Class
	sender string
	text   string
	reply  chan commandResult
}

type commandResult struct {
	env Envelope
	err error
}
