package router

import (
	"net/http"

	"whatsdesk-backend/internal/api"
	"whatsdesk-backend/internal/api/endpoints"
	"whatsdesk-backend/internal/api/middleware"
)

func TicketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		ticketEndpoints := endpoints.NewTicketEndpoints(s.Tickets(), prefix)
		mux.HandleFunc(prefix+"/tickets", s.MakeHTTPHandleFunc(ticketEndpoints.Tickets, middleware.ValidateAgentJWT))
		mux.HandleFunc(prefix+"/tickets/", s.MakeHTTPHandleFunc(ticketEndpoints.Ticket, middleware.ValidateAgentJWT))
	}
}
