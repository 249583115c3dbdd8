// Package prober answers one question per endpoint each watchdog cycle: is
// the recorder reachable right now. A probe is a plain TCP connect with a
// short timeout; any transport error counts as unreachable, no retries here.
// Retry policy lives with the reconnect scheduler.
package prober

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"nvr-kiosk/work/logger"
)

// Prober checks whether a host:port endpoint is reachable.
type Prober interface {
	Probe(ctx context.Context, addr string) bool
}

// TCPProber probes by opening and immediately closing a TCP connection.
type TCPProber struct {
	timeout time.Duration
}

// NewTCP creates a TCP prober with the given connect timeout.
func NewTCP(timeout time.Duration) *TCPProber {
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &TCPProber{timeout: timeout}
}

// Probe dials the address. False on any error, including timeout and
// context cancellation.
func (p *TCPProber) Probe(ctx context.Context, addr string) bool {
	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		logger.Debug("Probe failed for %s: %v", addr, err)
		return false
	}
	conn.Close()
	return true
}

// Pool fans probes out over a fixed-size worker pool so one slow endpoint
// cannot serialize a whole watchdog cycle.
type Pool struct {
	prober Prober
	pool   *ants.Pool
}

// NewPool creates a probe pool with the given worker count.
func NewPool(p Prober, workers int) (*Pool, error) {
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &Pool{prober: p, pool: pool}, nil
}

// ProbeAll probes every distinct address concurrently and returns a
// reachability verdict per address. Blocks until all probes complete.
func (pl *Pool) ProbeAll(ctx context.Context, addrs []string) map[string]bool {
	distinct := dedupe(addrs)
	results := make(map[string]bool, len(distinct))

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, addr := range distinct {
		addr := addr
		wg.Add(1)
		task := func() {
			defer wg.Done()
			ok := pl.prober.Probe(ctx, addr)
			mu.Lock()
			results[addr] = ok
			mu.Unlock()
		}
		if err := pl.pool.Submit(task); err != nil {
			// Pool released or overloaded; probe inline rather than skip.
			logger.Warn("Probe pool submit failed, running inline: %v", err)
			task()
		}
	}

	wg.Wait()
	return results
}

// Release tears down the worker pool.
func (pl *Pool) Release() {
	pl.pool.Release()
}

func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
