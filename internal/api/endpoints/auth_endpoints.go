package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	internaljwt "whatsdesk-backend/internal/jwt"

	"github.com/google/uuid"
)

type AuthEndpoints interface {
	Login(http.ResponseWriter, *http.Request) error
	Refresh(http.ResponseWriter, *http.Request) error
}

type authEndpoints struct {
	accessKey string
}

// NewAuthEndpoints exchanges the shared agent access key for session
// tokens. Agent identities are not stored anywhere; the email in the login
// request only labels the session.
func NewAuthEndpoints(accessKey string) AuthEndpoints {
	return &authEndpoints{accessKey: accessKey}
}

type loginRequest struct {
	Email     string `json:"email"`
	AccessKey string `json:"accessKey"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *authEndpoints) Login(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleLogin,
	})
}

func (h *authEndpoints) Refresh(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleRefresh,
	})
}

func (h *authEndpoints) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Malformed request body",
			ErrorLog:   fmt.Errorf("login decode: %w", err),
		}
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Email is required",
			ErrorLog:   fmt.Errorf("login without email"),
		}
	}

	if h.accessKey == "" || req.AccessKey != h.accessKey {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("login access key mismatch for %s", req.Email),
		}
	}

	agent := internaljwt.Agent{
		Id:    uuid.NewString(),
		Email: req.Email,
	}

	tokens, err := internaljwt.CreateTokenWithRefresh(agent, internaljwt.RoleAgent, 0)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Failed to create session",
			ErrorLog:   fmt.Errorf("login token creation: %w", err),
		}
	}

	return WriteJSON(w, http.StatusOK, tokens)
}

func (h *authEndpoints) handleRefresh(w http.ResponseWriter, r *http.Request) error {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Malformed request body",
			ErrorLog:   fmt.Errorf("refresh decode: %w", err),
		}
	}

	accessToken, err := internaljwt.RefreshToken(req.RefreshToken, internaljwt.RoleAgent)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("refresh failed: %w", err),
		}
	}

	return WriteJSON(w, http.StatusOK, internaljwt.TokenResponse{AccessToken: accessToken})
}
