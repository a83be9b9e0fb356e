package websocket

import (
	"testing"
	"time"
)

func testClient(id string, buffer int) *WSClient {
	return &WSClient{
		Message: make(chan *Frame, buffer),
		ID:      id,
		done:    make(chan struct{}),
	}
}

func recvFrame(t *testing.T, cl *WSClient) *Frame {
	t.Helper()
	select {
	case frame := <-cl.Message:
		return frame
	case <-time.After(time.Second):
		t.Fatalf("client %s received no frame", cl.ID)
		return nil
	}
}

func assertNoFrame(t *testing.T, cl *WSClient) {
	t.Helper()
	select {
	case frame := <-cl.Message:
		t.Fatalf("client %s unexpectedly received %s", cl.ID, frame.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := testClient("a", 4)
	b := testClient("b", 4)
	c := testClient("c", 4)

	hub.Join <- joinRequest{client: a, roomID: "ticket:x"}
	hub.Join <- joinRequest{client: b, roomID: "ticket:x"}
	hub.Join <- joinRequest{client: c, roomID: "ticket:y"}

	frame, err := newFrame(FrameNewMessage, map[string]string{"body": "hello"})
	if err != nil {
		t.Fatalf("newFrame error: %v", err)
	}
	hub.Broadcast <- RoomFrame{RoomID: "ticket:x", Frame: frame}

	if got := recvFrame(t, a); got.Type != FrameNewMessage {
		t.Fatalf("unexpected frame type %s", got.Type)
	}
	recvFrame(t, b)
	assertNoFrame(t, c)
}

func TestRoomsAreCreatedOnJoinAndCollectedWhenEmpty(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := testClient("a", 4)
	hub.Join <- joinRequest{client: a, roomID: "ticket:x"}

	counts := hub.SubscriberCounts()
	if counts["ticket:x"] != 1 {
		t.Fatalf("expected 1 subscriber, got %d", counts["ticket:x"])
	}

	hub.Leave <- leaveRequest{client: a, roomID: "ticket:x"}

	counts = hub.SubscriberCounts()
	if _, ok := counts["ticket:x"]; ok {
		t.Fatal("empty room must be collected")
	}
}

func TestUnregisterRemovesClientFromAllRooms(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := testClient("a", 4)
	b := testClient("b", 4)
	hub.Join <- joinRequest{client: a, roomID: "ticket:x"}
	hub.Join <- joinRequest{client: a, roomID: "tickets:support-line"}
	hub.Join <- joinRequest{client: b, roomID: "ticket:x"}

	hub.Unregister <- a

	counts := hub.SubscriberCounts()
	if counts["ticket:x"] != 1 {
		t.Fatalf("expected 1 remaining subscriber, got %d", counts["ticket:x"])
	}
	if _, ok := counts["tickets:support-line"]; ok {
		t.Fatal("binding room must be collected once empty")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := testClient("slow", 1)
	hub.Join <- joinRequest{client: slow, roomID: "ticket:x"}

	frame, err := newFrame(FrameNewMessage, map[string]string{"body": "one"})
	if err != nil {
		t.Fatalf("newFrame error: %v", err)
	}

	hub.Broadcast <- RoomFrame{RoomID: "ticket:x", Frame: frame}
	hub.Broadcast <- RoomFrame{RoomID: "ticket:x", Frame: frame}

	select {
	case <-slow.done:
	case <-time.After(time.Second):
		t.Fatal("slow client was not stopped")
	}

	counts := hub.SubscriberCounts()
	if _, ok := counts["ticket:x"]; ok {
		t.Fatal("room must be collected after dropping its only client")
	}
}
