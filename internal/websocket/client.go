package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type WSClient struct {
	Conn      *websocket.Conn
	Message   chan *Frame
	ID        string
	AgentName string

	// ticketRoom is the ticket room this session currently follows. Only
	// the read loop touches it.
	ticketRoom string

	done     chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	isClosed bool
}

func newClient(conn *websocket.Conn, id, agentName string) *WSClient {
	return &WSClient{
		Conn:      conn,
		Message:   make(chan *Frame, 16),
		ID:        id,
		AgentName: agentName,
		done:      make(chan struct{}),
	}
}

func (cl *WSClient) stop() {
	cl.stopOnce.Do(func() {
		close(cl.done)
	})
}

func (cl *WSClient) keepAlive() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteMessage(websocket.PingMessage, nil)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("ping error for session %s: %v", cl.ID, err)
				cl.stop()
				return
			}
		}
	}
}

func (cl *WSClient) writePump() {
	defer func() {
		cl.mu.Lock()
		cl.isClosed = true
		cl.Conn.Close()
		cl.mu.Unlock()
	}()

	for {
		select {
		case <-cl.done:
			return
		case frame := <-cl.Message:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteJSON(frame)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("error writing to session %s: %v", cl.ID, err)
				cl.stop()
				return
			}
		}
	}
}

// send queues a frame for this session only. Used for direct replies; room
// traffic goes through the hub.
func (cl *WSClient) send(frame *Frame) {
	select {
	case cl.Message <- frame:
	case <-cl.done:
	}
}
