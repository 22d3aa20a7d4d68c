// Package input turns the mental-command stream into discrete player inputs. Samples are
// queued as they arrive and, once per interval, the strongest one is emitted if it is
// strong enough.
package input

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/akyaiy/cortexlink/internal/cortex/stream"
)

const (
	DefaultInterval  = 300 * time.Millisecond
	DefaultMinWeight = 0.1
)

type Direction int

const (
	None Direction = iota
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "none"
}

// Event is one computed input.
type Event struct {
	Command   string
	Direction Direction
	Weight    float64
	At        time.Time
}

func (e Event) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("command", e.Command),
		slog.String("direction", e.Direction.String()),
		slog.Float64("weight", e.Weight),
	)
}

type sample struct {
	command string
	weight  float64
}

// Aggregator is a stream.Consumer. Consume only queues, so it is cheap enough to run on
// the connection's event loop.
type Aggregator struct {
	minWeight float64
	log       *slog.Logger

	mu     sync.Mutex
	queued []sample
}

func NewAggregator(minWeight float64, log *slog.Logger) *Aggregator {
	if minWeight <= 0 {
		minWeight = DefaultMinWeight
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{minWeight: minWeight, log: log}
}

func (a *Aggregator) Consume(msg stream.Message) {
	command, weight, ok := msg.Com()
	if !ok {
		return
	}
	a.mu.Lock()
	a.queued = append(a.queued, sample{command: command, weight: weight})
	a.mu.Unlock()
}

// Pending returns the number of queued samples.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queued)
}

// Compute drains the queue and returns the strongest sample when its weight reaches the
// minimum. Among equal weights the most recent sample wins.
func (a *Aggregator) Compute(now time.Time) (Event, bool) {
	a.mu.Lock()
	queued := a.queued
	a.queued = nil
	a.mu.Unlock()

	var best sample
	for i := len(queued) - 1; i >= 0; i-- {
		if queued[i].weight > best.weight {
			best = queued[i]
		}
	}
	if best.command == "" || best.weight < a.minWeight {
		return Event{}, false
	}

	ev := Event{Command: best.command, Weight: best.weight, At: now}
	switch best.command {
	case "left":
		ev.Direction = Left
	case "right":
		ev.Direction = Right
	}
	return ev, true
}

// Run calls Compute every interval until ctx is done and passes each event to emit.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration, emit func(Event)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			ev, ok := a.Compute(now)
			if !ok {
				continue
			}
			a.log.Debug("computed input", slog.Any("input", ev))
			emit(ev)
		}
	}
}
