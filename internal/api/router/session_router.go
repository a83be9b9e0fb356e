package router

import (
	"net/http"

	"whatsdesk-backend/internal/api"
	"whatsdesk-backend/internal/api/endpoints"
)

func SessionRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		sessionEndpoints := endpoints.NewSessionEndpoints(s.WSHandler())
		mux.HandleFunc(prefix+"/session", s.MakeHTTPHandleFunc(sessionEndpoints.Session))
	}
}
