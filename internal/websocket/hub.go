package websocket

type joinRequest struct {
	client *WSClient
	roomID string
}

type leaveRequest struct {
	client *WSClient
	roomID string
}

// Hub owns room membership. All state lives inside Run's goroutine; the
// channels are the only way in, so no locking is needed around the maps.
type Hub struct {
	rooms map[string]*Room

	Join       chan joinRequest
	Leave      chan leaveRequest
	Unregister chan *WSClient
	Broadcast  chan RoomFrame

	counts chan chan map[string]int
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		Join:       make(chan joinRequest),
		Leave:      make(chan leaveRequest),
		Unregister: make(chan *WSClient),
		Broadcast:  make(chan RoomFrame, 64),
		counts:     make(chan chan map[string]int),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case req := <-h.Join:
			room, ok := h.rooms[req.roomID]
			if !ok {
				room = &Room{
					ID:      req.roomID,
					Clients: make(map[string]*WSClient),
				}
				h.rooms[req.roomID] = room
				setRooms(len(h.rooms))
			}
			room.Clients[req.client.ID] = req.client

		case req := <-h.Leave:
			h.removeFromRoom(req.client, req.roomID)

		case client := <-h.Unregister:
			for roomID := range h.rooms {
				h.removeFromRoom(client, roomID)
			}

		case message := <-h.Broadcast:
			room, ok := h.rooms[message.RoomID]
			if !ok {
				continue
			}
			delivered := 0
			for _, client := range room.Clients {
				select {
				case client.Message <- message.Frame:
					delivered++
				default:
					// Slow consumer; drop the session rather than block
					// every other subscriber in the room.
					h.removeFromRoom(client, message.RoomID)
					client.stop()
				}
			}
			if delivered > 0 {
				addDelivered(delivered)
			}

		case reply := <-h.counts:
			out := make(map[string]int, len(h.rooms))
			for roomID, room := range h.rooms {
				out[roomID] = len(room.Clients)
			}
			reply <- out
		}
	}
}

func (h *Hub) removeFromRoom(client *WSClient, roomID string) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := room.Clients[client.ID]; !ok {
		return
	}
	delete(room.Clients, client.ID)
	if len(room.Clients) == 0 {
		delete(h.rooms, roomID)
		setRooms(len(h.rooms))
	}
}

// SubscriberCounts reports the number of live sessions per room. Served by
// the Run goroutine, so callers see a consistent snapshot.
func (h *Hub) SubscriberCounts() map[string]int {
	reply := make(chan map[string]int, 1)
	h.counts <- reply
	return <-reply
}
