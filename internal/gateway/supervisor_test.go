package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"whatsdesk-backend/internal/dto"
)

type fakeConn struct {
	frames    chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 8),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-c.frames:
		return 1, frame, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

func TestSupervisorGivesUpAfterMaxAttempts(t *testing.T) {
	dials := 0
	var giveUpAttempts int

	sup := NewSupervisor(SupervisorConfig{
		URL:         "ws://gateway.test/events",
		BaseDelay:   time.Millisecond,
		MaxAttempts: 3,
		Dial: func(ctx context.Context, url string) (Conn, error) {
			dials++
			return nil, errors.New("connection refused")
		},
		OnGiveUp: func(attempts int, lastErr error) {
			giveUpAttempts = attempts
		},
	})

	err := sup.Run(context.Background())
	if !errors.Is(err, ErrGivenUp) {
		t.Fatalf("expected ErrGivenUp, got %v", err)
	}
	if dials != 3 {
		t.Fatalf("expected exactly 3 dials, got %d", dials)
	}
	if giveUpAttempts != 3 {
		t.Fatalf("expected give-up hook with 3 attempts, got %d", giveUpAttempts)
	}

	state, attempts := sup.Status()
	if state != StateGivenUp || attempts != 3 {
		t.Fatalf("unexpected status %s/%d", state, attempts)
	}
}

func TestSupervisorProbesBeforeDialing(t *testing.T) {
	probes := 0
	dials := 0
	conns := make(chan *fakeConn, 1)

	sup := NewSupervisor(SupervisorConfig{
		URL:         "ws://gateway.test/events",
		BaseDelay:   time.Millisecond,
		MaxAttempts: 5,
		Probe: func(ctx context.Context) error {
			probes++
			if probes < 3 {
				return errors.New("gateway: probe returned status 503")
			}
			return nil
		},
		Dial: func(ctx context.Context, url string) (Conn, error) {
			dials++
			conn := newFakeConn()
			conns <- conn
			return conn, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	<-conns
	waitForState(t, sup, StateConnected)

	if probes != 3 {
		t.Fatalf("expected 3 probes, got %d", probes)
	}
	if dials != 1 {
		t.Fatalf("expected no dial until the probe passes, got %d", dials)
	}

	cancel()
	<-done
}

func TestSupervisorGivesUpOnProbeFailures(t *testing.T) {
	dials := 0
	var giveUpAttempts int

	sup := NewSupervisor(SupervisorConfig{
		URL:         "ws://gateway.test/events",
		BaseDelay:   time.Millisecond,
		MaxAttempts: 2,
		Probe: func(ctx context.Context) error {
			return errors.New("gateway unreachable")
		},
		Dial: func(ctx context.Context, url string) (Conn, error) {
			dials++
			return newFakeConn(), nil
		},
		OnGiveUp: func(attempts int, lastErr error) {
			giveUpAttempts = attempts
		},
	})

	err := sup.Run(context.Background())
	if !errors.Is(err, ErrGivenUp) {
		t.Fatalf("expected ErrGivenUp, got %v", err)
	}
	if dials != 0 {
		t.Fatalf("probe failures must not spend handshakes, got %d dials", dials)
	}
	if giveUpAttempts != 2 {
		t.Fatalf("expected give-up hook with 2 attempts, got %d", giveUpAttempts)
	}
}

func TestSupervisorResetsAttemptsAfterSuccess(t *testing.T) {
	dials := 0
	conns := make(chan *fakeConn, 4)

	sup := NewSupervisor(SupervisorConfig{
		URL:         "ws://gateway.test/events",
		BaseDelay:   time.Millisecond,
		MaxAttempts: 2,
		Dial: func(ctx context.Context, url string) (Conn, error) {
			dials++
			// Fail once, connect, then fail once more after the drop.
			// With MaxAttempts 2 this only survives if a successful
			// connect resets the counter.
			if dials == 1 || dials == 3 {
				return nil, errors.New("connection refused")
			}
			conn := newFakeConn()
			conns <- conn
			return conn, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	first := <-conns
	waitForState(t, sup, StateConnected)
	first.Close()

	<-conns
	waitForState(t, sup, StateConnected)

	if dials != 4 {
		t.Fatalf("expected 4 dials, got %d", dials)
	}
	_, attempts := sup.Status()
	if attempts != 0 {
		t.Fatalf("expected attempts reset after success, got %d", attempts)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSupervisorDispatchesEvents(t *testing.T) {
	conn := newFakeConn()
	received := make(chan dto.GatewayEvent, 1)

	sup := NewSupervisor(SupervisorConfig{
		URL:         "ws://gateway.test/events",
		BaseDelay:   time.Millisecond,
		MaxAttempts: 2,
		Dial: func(ctx context.Context, url string) (Conn, error) {
			return conn, nil
		},
		Handle: func(ctx context.Context, event dto.GatewayEvent) error {
			received <- event
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	event := dto.GatewayEvent{
		Event:    dto.EventMessagesUpsert,
		Instance: "support-line",
		Data: dto.GatewayEventData{
			Key: dto.GatewayMessageKey{RemoteJid: "5511999887766@s.whatsapp.net", ID: "msg-1"},
		},
	}
	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	conn.frames <- []byte("not json")
	conn.frames <- raw

	select {
	case got := <-received:
		if got.Data.Key.ID != "msg-1" {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event was not dispatched")
	}
}

func TestSupervisorStopsOnContextCancel(t *testing.T) {
	conn := newFakeConn()
	sup := NewSupervisor(SupervisorConfig{
		URL:         "ws://gateway.test/events",
		BaseDelay:   time.Millisecond,
		MaxAttempts: 2,
		Dial: func(ctx context.Context, url string) (Conn, error) {
			return conn, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	waitForState(t, sup, StateConnected)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop on cancel")
	}
}

func waitForState(t *testing.T, sup *Supervisor, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		state, _ := sup.Status()
		if state == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	state, _ := sup.Status()
	t.Fatalf("state %s never reached, still %s", want, state)
}
