package router

import (
	"net/http"

	"whatsdesk-backend/internal/api"
	"whatsdesk-backend/internal/api/endpoints"
)

func GatewayRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		webhookEndpoints := endpoints.NewWebhookEndpoints(s.Tickets(), s.WebhookToken())
		mux.HandleFunc(prefix+"/events", s.MakeHTTPHandleFunc(webhookEndpoints.Events))
	}
}
