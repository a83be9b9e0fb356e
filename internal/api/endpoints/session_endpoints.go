package endpoints

import (
	"fmt"
	"net/http"
	"time"

	internaljwt "whatsdesk-backend/internal/jwt"
	"whatsdesk-backend/internal/websocket"
)

type SessionEndpoints interface {
	Session(http.ResponseWriter, *http.Request) error
}

type sessionEndpoints struct {
	handler *websocket.Handler
}

func NewSessionEndpoints(handler *websocket.Handler) SessionEndpoints {
	return &sessionEndpoints{handler: handler}
}

// Session upgrades an agent connection into a live session. Browsers cannot
// set headers on websocket upgrades, so the token rides in the query string.
func (h *sessionEndpoints) Session(w http.ResponseWriter, r *http.Request) error {
	if h.handler == nil {
		return &HTTPError{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Websocket not available",
			ErrorLog:   fmt.Errorf("session endpoint without websocket handler"),
		}
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = ExtractTokenFromHeaders(r)
	}

	claims, err := internaljwt.ParseToken(token, internaljwt.RoleAgent)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("session token invalid: %w", err),
		}
	}

	expires := int64(claims["exp"].(float64))
	if time.Now().Unix() > expires {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Token expired",
			ErrorLog:   fmt.Errorf("session token expired"),
		}
	}

	agentName, _ := claims["email"].(string)
	h.handler.ServeWS(w, r, agentName)
	return nil
}
