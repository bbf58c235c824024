package event

import (
	"time"

	"paper_trade/internal/market"
)

// Type defines the type of event.
type Type uint16

const (
	EvPriceBatch Type = iota + 1
	EvEvaluate
	EvCommand
)

func (t Type) String() string {
	switch t {
	case EvPriceBatch:
		return "price_batch"
	case EvEvaluate:
		return "evaluate"
	case EvCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Event is the interface for all engine inbox events.
type Event interface {
	SetSeq(seq uint64)
	GetSeq() uint64
	GetTs() time.Time
	GetType() Type
}

// BaseEvent contains common fields for all events.
// Seq is assigned by the engine loop when the event is dequeued, so it follows
// processing order. Ts is the submission time.
type BaseEvent struct {
	Seq uint64    `json:"seq"`
	Ts  time.Time `json:"ts"`
}

func (e *BaseEvent) SetSeq(seq uint64) { e.Seq = seq }
func (e BaseEvent) GetSeq() uint64     { return e.Seq }
func (e BaseEvent) GetTs() time.Time   { return e.Ts }

// PriceBatchEvent carries one coalesced flush of the price feed.
type PriceBatchEvent struct {
	BaseEvent
	Updates []market.Update `json:"updates"`
}

func (e PriceBatchEvent) GetType() Type { return EvPriceBatch }

// EvaluateEvent is the periodic pending-order evaluation tick.
type EvaluateEvent struct {
	BaseEvent
}

func (e EvaluateEvent) GetType() Type { return EvEvaluate }

// CommandEvent runs Apply on the engine goroutine and reports its error on Done.
// Done must be buffered so the engine never blocks on a caller that gave up.
// ReadOnly commands skip the snapshot write.
type CommandEvent struct {
	BaseEvent
	Name     string
	Apply    func() error
	Done     chan error
	ReadOnly bool
}

func (e CommandEvent) GetType() Type { return EvCommand }

// NewCommand builds a command event with a ready reply channel.
func NewCommand(name string, apply func() error) *CommandEvent {
	return &CommandEvent{Name: name, Apply: apply, Done: make(chan error, 1)}
}
