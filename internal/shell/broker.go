package shell

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/blackwell-systems/memprune/internal/logging"
)

// ErrNoPrivilege is returned when no channel can run commands.
var ErrNoPrivilege = errors.New("no privileged channel available")

// Tri-state availability of a probed channel.
const (
	stateUnknown int32 = iota
	stateAvailable
	stateUnavailable
)

// probe caches the outcome of a background availability check.
type probe struct {
	ch    Prober
	state atomic.Int32

	mu       sync.Mutex
	inFlight bool
	done     chan struct{}
}

// Broker executes commands through the first usable channel of an ordered
// list. It holds no cross-call state beyond cached availability, so calls
// may run concurrently.
type Broker struct {
	channels []Channel
	probes   map[Channel]*probe
	log      *logging.Logger
}

// NewBroker creates a Broker over channels in priority order and starts a
// background probe for every channel that needs one.
func NewBroker(channels ...Channel) *Broker {
	b := &Broker{
		channels: channels,
		probes:   make(map[Channel]*probe),
		log:      logging.Default(),
	}
	for _, ch := range channels {
		if p, ok := ch.(Prober); ok {
			pr := &probe{ch: p}
			b.probes[ch] = pr
			b.startProbe(pr)
		}
	}
	return b
}

func (b *Broker) startProbe(pr *probe) {
	pr.mu.Lock()
	if pr.inFlight {
		pr.mu.Unlock()
		return
	}
	pr.inFlight = true
	done := make(chan struct{})
	pr.done = done
	pr.mu.Unlock()

	go func() {
		ok := pr.ch.Probe(context.Background())
		if ok {
			pr.state.Store(stateAvailable)
		} else {
			pr.state.Store(stateUnavailable)
		}
		b.log.Debug("%s channel probe complete: available=%v", pr.ch.Name(), ok)

		pr.mu.Lock()
		pr.inFlight = false
		pr.mu.Unlock()
		close(done)
	}()
}

// Invalidate forgets every cached probe result and probes again.
func (b *Broker) Invalidate() {
	for _, pr := range b.probes {
		pr.state.Store(stateUnknown)
		b.startProbe(pr)
	}
}

// usable reports, without blocking, whether ch may be tried now.
func (b *Broker) usable(ch Channel) bool {
	if pr, ok := b.probes[ch]; ok {
		return pr.state.Load() == stateAvailable
	}
	if c, ok := ch.(Checker); ok {
		return c.Ready()
	}
	return true
}

// HasAnyPrivilege reports whether some channel can run commands right now.
// It never blocks: a probe still in flight counts as unavailable.
func (b *Broker) HasAnyPrivilege() bool {
	for _, ch := range b.channels {
		if c, ok := ch.(Checker); ok && c.Ready() {
			return true
		}
	}
	for _, pr := range b.probes {
		if pr.state.Load() == stateAvailable {
			return true
		}
	}
	return false
}

// WaitForPrivilege blocks until a channel is available, every probe has
// finished, or timeout elapses. A cancelled ctx is returned as an error
// rather than a false result.
func (b *Broker) WaitForPrivilege(ctx context.Context, timeout time.Duration) (bool, error) {
	if b.HasAnyPrivilege() {
		return true, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for _, pr := range b.probes {
		pr.mu.Lock()
		done := pr.done
		pr.mu.Unlock()
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-timer.C:
			return b.HasAnyPrivilege(), nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	return b.HasAnyPrivilege(), nil
}

// Execute runs command and reports whether any channel ran it.
func (b *Broker) Execute(ctx context.Context, command string) bool {
	_, err := b.run(ctx, command, false)
	return err == nil
}

// ExecuteCapture runs command and returns its combined output. ok is false
// when no channel could run it; callers must read that as "state unknown",
// never as an empty result.
func (b *Broker) ExecuteCapture(ctx context.Context, command string) (output string, ok bool) {
	out, err := b.run(ctx, command, true)
	if err != nil {
		return "", false
	}
	return out, true
}

func (b *Broker) run(ctx context.Context, command string, capture bool) (string, error) {
	var result *multierror.Error
	for _, ch := range b.channels {
		if !b.usable(ch) {
			continue
		}
		out, err := ch.Run(ctx, command, capture)
		if err == nil {
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		result = multierror.Append(result, err)
	}

	if result == nil {
		return "", ErrNoPrivilege
	}
	b.log.Debug("command failed on every channel: %v", result)
	return "", result.ErrorOrNil()
}
