// Package probe sends ICMP echo requests to targets and reports round-trip
// latency. A probe that errors or receives no reply is treated as packet loss.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/netpulse/netpulse/internal/logging"
)

// ErrNoReply is returned when the probe completed without receiving a reply.
var ErrNoReply = errors.New("no reply received")

// Prober sends a single probe to an address and returns the round-trip time
// in milliseconds. Any error means the probe counts as packet loss.
type Prober interface {
	Probe(ctx context.Context, address string) (float64, error)
}

type pinger interface {
	Run() error
	Stop()
	SetPrivileged(bool)
	Privileged() bool
	SetCount(int)
	SetTimeout(time.Duration)
	Statistics() *probing.Statistics
}

type probingPinger struct {
	*probing.Pinger
}

func (p *probingPinger) SetCount(count int) {
	p.Pinger.Count = count
}

func (p *probingPinger) SetTimeout(timeout time.Duration) {
	p.Pinger.Timeout = timeout
}

func defaultPingerFactory(address string) (pinger, error) {
	p, err := probing.NewPinger(address)
	if err != nil {
		return nil, err
	}
	return &probingPinger{Pinger: p}, nil
}

// ICMPProber probes targets with a single ICMP echo request per call.
type ICMPProber struct {
	timeout   time.Duration
	logger    *logging.Logger
	newPinger func(string) (pinger, error)
}

// NewICMPProber creates an ICMP prober with the given per-probe timeout.
func NewICMPProber(timeout time.Duration, logger *logging.Logger) *ICMPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ICMPProber{
		timeout:   timeout,
		logger:    logger.WithComponent(logging.ComponentMonitor),
		newPinger: defaultPingerFactory,
	}
}

// Probe sends one echo request and returns the round-trip time in
// milliseconds.
func (p *ICMPProber) Probe(ctx context.Context, address string) (float64, error) {
	pinger, err := p.newPinger(address)
	if err != nil {
		return 0, fmt.Errorf("failed to create pinger: %w", err)
	}

	pinger.SetCount(1)
	pinger.SetTimeout(p.timeout)

	// Try privileged mode first (raw ICMP), fall back to unprivileged UDP
	pinger.SetPrivileged(true)

	if err := p.run(ctx, pinger); err != nil {
		p.logger.WithFields(map[string]interface{}{
			"address": address,
		}).Debug("Privileged ICMP failed, trying unprivileged mode")

		pinger.SetPrivileged(false)
		if err := p.run(ctx, pinger); err != nil {
			return 0, fmt.Errorf("ping failed in both privileged and unprivileged mode: %w", err)
		}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, ErrNoReply
	}

	return float64(stats.AvgRtt) / float64(time.Millisecond), nil
}

func (p *ICMPProber) run(ctx context.Context, pinger pinger) error {
	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case <-ctx.Done():
		pinger.Stop()
		return ctx.Err()
	case err := <-done:
		return err
	}
}
