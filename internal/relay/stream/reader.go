package stream

import (
	"context"
	"sync/atomic"
	"time"

	errspkg "github.com/visiona/vlmrelay/internal/relay/errors"
	loggingpkg "github.com/visiona/vlmrelay/internal/relay/logging"
)

// State is the cursor reader's connection state.
type State int

const (
	// Disconnected means the upstream client has no live connection.
	Disconnected State = iota
	// ConnectedIdle means the connection is live and the last read returned
	// no entries.
	ConnectedIdle
	// ConnectedReading means the last read yielded a batch.
	ConnectedReading
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case ConnectedIdle:
		return "connected_idle"
	case ConnectedReading:
		return "connected_reading"
	default:
		return "unknown"
	}
}

// EntryHandler processes one entry. The reader advances its cursor only after
// the handler returns, so a crash loses at most the in-flight batch.
type EntryHandler func(ctx context.Context, entry Entry)

// ReaderOptions tunes the cursor reader. Zero values fall back to the
// defaults matching the upstream service contract.
type ReaderOptions struct {
	// ReadBlock bounds how long one read waits for new entries.
	ReadBlock time.Duration
	// ReadCount caps the batch size per read.
	ReadCount int64
	// ReconnectWait is the backoff after a lost connection.
	ReconnectWait time.Duration
	// RetryWait is the backoff after a transient read error.
	RetryWait time.Duration
}

func (o ReaderOptions) withDefaults() ReaderOptions {
	if o.ReadBlock <= 0 {
		o.ReadBlock = time.Second
	}
	if o.ReadCount <= 0 {
		o.ReadCount = 10
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 5 * time.Second
	}
	if o.RetryWait <= 0 {
		o.RetryWait = time.Second
	}
	return o
}

// CursorReader maintains a resumable position in the upstream log and pumps
// entries through the handler in log order. Exactly one CursorReader runs per
// process; it is the sole writer of the cursor position. It never terminates
// on error and only stops when its context is cancelled.
type CursorReader struct {
	client  LogClient
	handler EntryHandler
	log     loggingpkg.ServiceLogger
	opts    ReaderOptions

	position  string
	state     State
	connected atomic.Bool

	// sleep is swapped out by tests to observe backoff decisions.
	sleep func(ctx context.Context, d time.Duration)
}

// NewCursorReader builds a reader starting at the StartFromNow sentinel.
func NewCursorReader(client LogClient, handler EntryHandler, log loggingpkg.ServiceLogger, opts ReaderOptions) (*CursorReader, error) {
	if client == nil {
		return nil, errspkg.ErrLogClientRequired
	}
	if handler == nil {
		return nil, errspkg.ErrHandlerRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	return &CursorReader{
		client:   client,
		handler:  handler,
		log:      log,
		opts:     opts.withDefaults(),
		position: StartFromNow,
		state:    Disconnected,
		sleep:    sleepCtx,
	}, nil
}

// Connected reports whether the upstream connection is currently live. Safe
// for concurrent use by the stats aggregator.
func (r *CursorReader) Connected() bool {
	return r.connected.Load()
}

// Position returns the last consumed entry id, or StartFromNow before the
// first batch. Only meaningful from the reader's own goroutine.
func (r *CursorReader) Position() string {
	return r.position
}

// Run pumps the upstream log until ctx is cancelled. The current iteration,
// including handler calls for an in-flight batch, completes before Run
// returns.
func (r *CursorReader) Run(ctx context.Context) {
	r.log.Info("stream reader starting", loggingpkg.LogFields{"position": r.position})
	for ctx.Err() == nil {
		r.step(ctx)
	}
	r.connected.Store(false)
	r.log.Info("stream reader stopped", loggingpkg.LogFields{"position": r.position})
}

// step performs one state-machine transition: connect when disconnected,
// otherwise one bounded read plus in-order processing of whatever it yields.
func (r *CursorReader) step(ctx context.Context) {
	if r.state == Disconnected {
		if err := r.client.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("upstream connect failed", err, loggingpkg.LogFields{"retry_in": r.opts.ReconnectWait})
			r.sleep(ctx, r.opts.ReconnectWait)
			return
		}
		r.connected.Store(true)
		r.state = ConnectedIdle
		r.log.Info("upstream connected", nil)
		return
	}

	entries, err := r.client.ReadAfter(ctx, r.position, r.opts.ReadBlock, r.opts.ReadCount)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if IsConnectivityError(err) {
			r.log.Error("upstream connection lost, reconnecting", err, nil)
			r.connected.Store(false)
			r.state = Disconnected
			_ = r.client.Close()
			r.sleep(ctx, r.opts.ReconnectWait)
			return
		}
		// Transient failure: retry the same position, no entries skipped.
		r.log.Error("stream read failed", err, loggingpkg.LogFields{"position": r.position, "retry_in": r.opts.RetryWait})
		r.sleep(ctx, r.opts.RetryWait)
		return
	}

	if len(entries) == 0 {
		r.state = ConnectedIdle
		return
	}

	r.state = ConnectedReading
	for _, entry := range entries {
		r.handler(ctx, entry)
		r.position = entry.ID
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
