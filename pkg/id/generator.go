// ABOUTME: Lock-free snowflake id generator
// ABOUTME: Keeps a logical clock so ids never repeat when the wall clock regresses

package id

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrClockRegression is returned when the sequence of the current tick is
	// exhausted and the wall clock does not advance past it in time
	ErrClockRegression = errors.New("id: clock regression")

	// ErrClockBeforeEpoch is returned when the wall clock is before the epoch
	ErrClockBeforeEpoch = errors.New("id: clock before epoch")

	errTickPending = errors.New("id: tick pending")
)

// DefaultMaxClockWait bounds how long Generate waits for the next tick
const DefaultMaxClockWait = 10 * time.Millisecond

// Config holds generator configuration
type Config struct {
	Instance     uint64
	Epoch        time.Time
	MaxClockWait time.Duration
	Clock        func() time.Time // defaults to time.Now
}

// Generator mints snowflake ids. Safe for concurrent use.
type Generator struct {
	instance uint64
	epoch    time.Time
	maxWait  time.Duration
	clock    func() time.Time

	// state packs the last logical tick and its sequence: tick<<SequenceBits | seq
	state atomic.Uint64
}

// NewGenerator creates a generator for one instance
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Instance > MaxInstance {
		return nil, fmt.Errorf("id: instance %d out of range 0..%d", cfg.Instance, MaxInstance)
	}
	if cfg.Epoch.IsZero() {
		cfg.Epoch = DefaultEpoch
	}
	if cfg.MaxClockWait <= 0 {
		cfg.MaxClockWait = DefaultMaxClockWait
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Generator{
		instance: cfg.Instance,
		epoch:    cfg.Epoch,
		maxWait:  cfg.MaxClockWait,
		clock:    cfg.Clock,
	}, nil
}

// MustGenerator is NewGenerator for static configuration
func MustGenerator(cfg Config) *Generator {
	g, err := NewGenerator(cfg)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Generator) tick() (uint64, error) {
	ms := g.clock().Sub(g.epoch).Milliseconds()
	if ms < 0 {
		return 0, ErrClockBeforeEpoch
	}
	return uint64(ms), nil
}

// Generate returns the next id
func (g *Generator) Generate() (uint64, error) {
	for {
		old := g.state.Load()
		last, seq := old>>SequenceBits, old&MaxSequence

		now, err := g.tick()
		if err != nil {
			return 0, err
		}

		var next uint64
		switch {
		case now > last:
			next = now << SequenceBits
		case seq < MaxSequence:
			// Same tick, or the wall clock went backwards: stay on the logical tick
			next = old + 1
		default:
			if err := g.waitPast(last); err != nil {
				return 0, err
			}
			continue
		}

		if !g.state.CompareAndSwap(old, next) {
			continue
		}

		v := Compose(next>>SequenceBits, g.instance, next&MaxSequence)
		if v == 0 {
			continue
		}
		return v, nil
	}
}

// waitPast blocks until the wall clock is beyond tick
func (g *Generator) waitPast(tick uint64) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Microsecond
	b.MaxInterval = time.Millisecond
	b.MaxElapsedTime = g.maxWait

	err := backoff.Retry(func() error {
		now, err := g.tick()
		if err != nil {
			return backoff.Permanent(err)
		}
		if now > tick {
			return nil
		}
		return errTickPending
	}, b)
	if errors.Is(err, errTickPending) {
		return fmt.Errorf("%w: tick %d exhausted", ErrClockRegression, tick)
	}
	return err
}

// NewNodeID mints a node id
func (g *Generator) NewNodeID() (NodeID, error) {
	v, err := g.Generate()
	return NodeID(v), err
}

// NewEdgeID mints an edge id
func (g *Generator) NewEdgeID() (EdgeID, error) {
	v, err := g.Generate()
	return EdgeID(v), err
}
