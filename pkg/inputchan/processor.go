package inputchan

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Processor receives the events a Consumer drained from its channel.
//
// Process is called on every drain, also when no new events arrived, so a processor
// can observe how often it is polled. Overflow is called before Process when the
// producer overwrote events the consumer had not read yet.
//
// Both methods run on the goroutine that performs the drain. No additional
// synchronization is provided.
type Processor[E Event] interface {
	Process(events []E, ch *Channel[E])
	Overflow(lost uint64, ch *Channel[E])
}

// Funcs adapts a pair of functions to the Processor interface. Nil functions are skipped.
type Funcs[E Event] struct {
	OnProcess  func(events []E, ch *Channel[E])
	OnOverflow func(lost uint64, ch *Channel[E])
}

func (f Funcs[E]) Process(events []E, ch *Channel[E]) {
	if f.OnProcess != nil {
		f.OnProcess(events, ch)
	}
}

func (f Funcs[E]) Overflow(lost uint64, ch *Channel[E]) {
	if f.OnOverflow != nil {
		f.OnOverflow(lost, ch)
	}
}

// LogProcessor reports event counts and overflows. It keeps no state besides the logger.
type LogProcessor[E Event] struct {
	log *zap.Logger
}

func NewLogProcessor[E Event](log *zap.Logger) LogProcessor[E] {
	if log == nil {
		log = zap.NewNop()
	}
	return LogProcessor[E]{log: log}
}

func (p LogProcessor[E]) Process(events []E, ch *Channel[E]) {
	if len(events) == 0 {
		return
	}
	p.log.Debug("new events since last processing",
		zap.Int("count", len(events)),
		zap.Stringer("channel", ch),
	)
}

func (p LogProcessor[E]) Overflow(lost uint64, ch *Channel[E]) {
	p.log.Error("detected overflow",
		zap.Uint64("lost", lost),
		zap.Stringer("channel", ch),
		zap.Int("capacity", ch.FrontBufferCapacity()),
	)
}

type Stats struct {
	Drains    uint64 `json:"drains"`
	Events    uint64 `json:"events"`
	Overflows uint64 `json:"overflows"`
	Lost      uint64 `json:"lost"`
}

// StatsProcessor counts drains, events and losses and forwards everything to next.
// It is safe to share one StatsProcessor between consumers drained from different goroutines.
type StatsProcessor[E Event] struct {
	next Processor[E]

	drains    atomic.Uint64
	events    atomic.Uint64
	overflows atomic.Uint64
	lost      atomic.Uint64
}

func NewStatsProcessor[E Event](next Processor[E]) *StatsProcessor[E] {
	return &StatsProcessor[E]{next: next}
}

func (p *StatsProcessor[E]) Process(events []E, ch *Channel[E]) {
	p.drains.Inc()
	p.events.Add(uint64(len(events)))
	if p.next != nil {
		p.next.Process(events, ch)
	}
}

func (p *StatsProcessor[E]) Overflow(lost uint64, ch *Channel[E]) {
	p.overflows.Inc()
	p.lost.Add(lost)
	if p.next != nil {
		p.next.Overflow(lost, ch)
	}
}

func (p *StatsProcessor[E]) Stats() Stats {
	return Stats{
		Drains:    p.drains.Load(),
		Events:    p.events.Load(),
		Overflows: p.overflows.Load(),
		Lost:      p.lost.Load(),
	}
}

type multiProcessor[E Event] []Processor[E]

// Multi calls every processor in order.
func Multi[E Event](processors ...Processor[E]) Processor[E] {
	return multiProcessor[E](processors)
}

func (m multiProcessor[E]) Process(events []E, ch *Channel[E]) {
	for _, p := range m {
		p.Process(events, ch)
	}
}

func (m multiProcessor[E]) Overflow(lost uint64, ch *Channel[E]) {
	for _, p := range m {
		p.Overflow(lost, ch)
	}
}
