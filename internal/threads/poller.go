package threads

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/blacktop/threadpost/internal/logutil"
)

// MaxPollAttempts bounds PollConfig.MaxAttempts.
const MaxPollAttempts = 10

// PollConfig controls how long the poller waits for a container.
type PollConfig struct {
	// MaxAttempts is the number of re-reads after the first status read,
	// at most MaxPollAttempts.
	MaxAttempts int
	// BaseDelay is the wait before the first re-read; each further wait doubles.
	BaseDelay time.Duration
	// InitialDelay is an optional wait before the very first read.
	InitialDelay time.Duration
}

// DefaultPollConfig is five re-reads starting at 500ms, about 15.5s of
// backoff in total.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
	}
}

// Budget is the longest total backoff the config can spend.
func (c PollConfig) Budget() time.Duration {
	total := c.InitialDelay
	for i := 0; i < c.MaxAttempts; i++ {
		d := c.delay(i)
		if total > time.Duration(math.MaxInt64)-d {
			return time.Duration(math.MaxInt64)
		}
		total += d
	}
	return total
}

// delay saturates at math.MaxInt64 instead of overflowing.
func (c PollConfig) delay(attempt int) time.Duration {
	if attempt >= 62 || c.BaseDelay > time.Duration(math.MaxInt64>>uint(attempt)) {
		return time.Duration(math.MaxInt64)
	}
	return c.BaseDelay << uint(attempt)
}

func (c PollConfig) normalized() PollConfig {
	def := DefaultPollConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.MaxAttempts > MaxPollAttempts {
		c.MaxAttempts = MaxPollAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	return c
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poller waits for a container to become publishable.
type Poller struct {
	svc      ContainerService
	cfg      PollConfig
	sleep    Sleeper
	observer Observer
}

// NewPoller returns a Poller reading container status from svc.
func NewPoller(svc ContainerService, cfg PollConfig) *Poller {
	return &Poller{
		svc:      svc,
		cfg:      cfg.normalized(),
		sleep:    sleepContext,
		observer: nopObserver{},
	}
}

// Config returns the effective poll configuration.
func (p *Poller) Config() PollConfig { return p.cfg }

// AwaitReady reads the container status until it is FINISHED. ERROR,
// EXPIRED and FAILED fail immediately with a ContainerFailureError; a container still
// in progress after the attempt budget fails with a ReadinessTimeoutError.
func (p *Poller) AwaitReady(ctx context.Context, creds Credentials, containerID string) (Container, error) {
	if p.cfg.InitialDelay > 0 {
		if err := p.sleep(ctx, p.cfg.InitialDelay); err != nil {
			return Container{}, fmt.Errorf("wait for container %s: %w", containerID, err)
		}
	}

	for attempt := 0; ; attempt++ {
		c, err := p.svc.ContainerStatus(ctx, creds, containerID)
		if err != nil {
			return Container{}, fmt.Errorf("read container %s status: %w", containerID, err)
		}
		if c.ID == "" {
			c.ID = containerID
		}
		p.observer.ContainerPolled(c.Status)
		logutil.Debugf("container status: container_id=%s status=%s attempt=%d", containerID, c.Status, attempt)

		if c.Status == StatusFinished {
			return c, nil
		}
		if c.Status.Terminal() {
			return Container{}, ContainerFailureError{ContainerID: containerID, Status: c.Status, Message: c.ErrorMessage}
		}

		if attempt >= p.cfg.MaxAttempts {
			return Container{}, ReadinessTimeoutError{ContainerID: containerID, Attempts: attempt + 1, LastStatus: c.Status}
		}
		wait := p.cfg.delay(attempt)
		logutil.Debugf("container not ready: container_id=%s retry_in=%s", containerID, wait)
		if err := p.sleep(ctx, wait); err != nil {
			return Container{}, fmt.Errorf("wait for container %s: %w", containerID, err)
		}
	}
}
