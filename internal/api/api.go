package api

import (
	"fmt"
	"net/http"

	"whatsdesk-backend/internal/database"
	"whatsdesk-backend/internal/gateway"
	"whatsdesk-backend/internal/queue"
	"whatsdesk-backend/internal/service/ticket"
	"whatsdesk-backend/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
)

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

// ServerOptions carries the components a binary chooses to expose. The
// ingest server runs with a supervisor and no hub; the ws server the other
// way around.
type ServerOptions struct {
	Tickets        *ticket.Service
	Supervisor     *gateway.Supervisor
	Hub            *websocket.Hub
	WSHandler      *websocket.Handler
	WebhookToken   string
	AgentAccessKey string
}

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	db                  *database.Database
	opts                ServerOptions
	routeRegistrars     []RouteRegistrar
	metrics             *metrics
}

func NewAPIServer(listenAddr string, rqm *queue.RequestQueueManager, db *database.Database, opts ServerOptions, registrars ...RouteRegistrar) *APIServer {
	return &APIServer{
		listenAddr:          listenAddr,
		requestQueueManager: rqm,
		db:                  db,
		opts:                opts,
		routeRegistrars:     registrars,
		metrics:             newMetrics(prometheus.DefaultRegisterer, listenAddr, rqm),
	}
}

func (s *APIServer) Run() {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())

	fmt.Printf("Server listening on http://localhost%s\n", s.listenAddr)

	if err := http.ListenAndServe(s.listenAddr, s.metrics.instrument(mux)); err != nil {
		fmt.Printf("server stopped: %v\n", err)
	}
}

func (s *APIServer) Database() *database.Database {
	return s.db
}

func (s *APIServer) Tickets() *ticket.Service {
	return s.opts.Tickets
}

func (s *APIServer) Supervisor() *gateway.Supervisor {
	return s.opts.Supervisor
}

func (s *APIServer) Hub() *websocket.Hub {
	return s.opts.Hub
}

func (s *APIServer) WSHandler() *websocket.Handler {
	return s.opts.WSHandler
}

func (s *APIServer) WebhookToken() string {
	return s.opts.WebhookToken
}

func (s *APIServer) AgentAccessKey() string {
	return s.opts.AgentAccessKey
}
