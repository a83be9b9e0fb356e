package endpoints

import (
	"net/http"

	"whatsdesk-backend/internal/dto"
	"whatsdesk-backend/internal/gateway"
	"whatsdesk-backend/internal/websocket"
)

type UtilsEndpoints interface {
	HelloWorld(http.ResponseWriter, *http.Request) error
	Health(http.ResponseWriter, *http.Request) error
}

type utilsEndpoints struct {
	supervisor *gateway.Supervisor
	hub        *websocket.Hub
}

func NewUtilsEndpoints(supervisor *gateway.Supervisor, hub *websocket.Hub) UtilsEndpoints {
	return &utilsEndpoints{
		supervisor: supervisor,
		hub:        hub,
	}
}

func (h *utilsEndpoints) HelloWorld(w http.ResponseWriter, r *http.Request) error {
	return WriteJSON(w, http.StatusOK, map[string]string{"message": "Hello world"})
}

// Health reports process liveness plus whatever this binary supervises: the
// gateway link state on the ingest server, subscriber counts on the ws
// server.
func (h *utilsEndpoints) Health(w http.ResponseWriter, r *http.Request) error {
	resp := dto.HealthResponse{Status: "ok"}

	if h.supervisor != nil {
		state, attempts := h.supervisor.Status()
		resp.GatewayState = string(state)
		resp.GatewayAttempts = attempts
		if state == gateway.StateGivenUp {
			resp.Status = "degraded"
		}
	}

	if h.hub != nil {
		resp.SubscriberCounts = h.hub.SubscriberCounts()
	}

	return WriteJSON(w, http.StatusOK, resp)
}
