package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"whatsdesk-backend/internal/dto"

	"github.com/gorilla/websocket"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateGivenUp      State = "given_up"
)

// ErrGivenUp is returned by Run once the reconnect budget is exhausted.
var ErrGivenUp = errors.New("gateway supervisor: gave up reconnecting")

// Conn is the slice of a websocket connection the supervisor reads from.
type Conn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

type DialFunc func(ctx context.Context, url string) (Conn, error)

// HandleFunc receives every event read off the gateway stream.
type HandleFunc func(ctx context.Context, event dto.GatewayEvent) error

type SupervisorConfig struct {
	// URL of the gateway's websocket event stream.
	URL string
	// BaseDelay is multiplied by the consecutive failure count, so waits
	// grow linearly up to BaseDelay*MaxAttempts.
	BaseDelay   time.Duration
	MaxAttempts int
	Handle      HandleFunc
	// Probe is called before each dial to check the gateway is alive at
	// all; a failure counts as a failed attempt without spending a
	// handshake. Optional.
	Probe func(ctx context.Context) error
	// Dial overrides the websocket dialer, used by tests.
	Dial DialFunc
	// OnGiveUp fires once when the supervisor stops retrying, so an
	// operator alert can go out.
	OnGiveUp func(attempts int, lastErr error)
}

// Supervisor keeps one connection to the gateway event stream alive,
// reconnecting with linear backoff and giving up after a bounded number of
// consecutive failures.
type Supervisor struct {
	cfg SupervisorConfig

	mu       sync.Mutex
	state    State
	attempts int
	lastErr  error
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Dial == nil {
		cfg.Dial = func(ctx context.Context, url string) (Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}
	}
	return &Supervisor{
		cfg:   cfg,
		state: StateDisconnected,
	}
}

// Status reports the current state and consecutive failure count, for the
// health endpoint.
func (s *Supervisor) Status() (State, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.attempts
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	if state == StateConnected {
		gatewayConnected.Set(1)
	} else {
		gatewayConnected.Set(0)
	}
}

func (s *Supervisor) recordFailure(err error) int {
	s.mu.Lock()
	s.attempts++
	s.lastErr = err
	attempts := s.attempts
	s.mu.Unlock()

	gatewayReconnects.Inc()
	return attempts
}

func (s *Supervisor) resetAttempts() {
	s.mu.Lock()
	s.attempts = 0
	s.lastErr = nil
	s.mu.Unlock()
}

// Run blocks until the context is cancelled or the reconnect budget runs
// out. A successful connection resets the failure count, so only
// consecutive failures count against the budget.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			s.setState(StateDisconnected)
			return err
		}

		s.setState(StateConnecting)

		if s.cfg.Probe != nil {
			if err := s.cfg.Probe(ctx); err != nil {
				if stopErr := s.backoff(ctx, fmt.Errorf("liveness probe: %w", err)); stopErr != nil {
					return stopErr
				}
				continue
			}
		}

		conn, err := s.cfg.Dial(ctx, s.cfg.URL)
		if err != nil {
			if stopErr := s.backoff(ctx, err); stopErr != nil {
				return stopErr
			}
			continue
		}

		s.resetAttempts()
		s.setState(StateConnected)
		log.Printf("gateway event stream connected")

		err = s.consume(ctx, conn)
		s.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("gateway event stream dropped: %v", err)
	}
}

// backoff records a failed attempt and sleeps before the next one. A non-nil
// return means Run must stop: either the budget is spent or the context is
// done.
func (s *Supervisor) backoff(ctx context.Context, err error) error {
	attempts := s.recordFailure(err)
	log.Printf("gateway connect attempt %d/%d failed: %v", attempts, s.cfg.MaxAttempts, err)

	if attempts >= s.cfg.MaxAttempts {
		s.setState(StateGivenUp)
		if s.cfg.OnGiveUp != nil {
			s.cfg.OnGiveUp(attempts, err)
		}
		return fmt.Errorf("%w after %d attempts: %v", ErrGivenUp, attempts, err)
	}

	delay := s.cfg.BaseDelay * time.Duration(attempts)
	select {
	case <-ctx.Done():
		s.setState(StateDisconnected)
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (s *Supervisor) consume(ctx context.Context, conn Conn) error {
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event dto.GatewayEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("dropping malformed gateway event: %v", err)
			continue
		}

		if s.cfg.Handle != nil {
			if err := s.cfg.Handle(ctx, event); err != nil {
				log.Printf("failed to handle gateway event %s: %v", event.Event, err)
			}
		}
	}
}
