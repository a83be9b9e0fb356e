package main

import (
	"log"

	"whatsdesk-backend/internal/api"
	"whatsdesk-backend/internal/api/router"
	"whatsdesk-backend/internal/database"
	"whatsdesk-backend/internal/env"
	"whatsdesk-backend/internal/gateway"
	"whatsdesk-backend/internal/queue"
	ticketservice "whatsdesk-backend/internal/service/ticket"
	"whatsdesk-backend/internal/websocket"

	"github.com/go-redis/redis/v8"
)

func main() {
	env.MustHave(
		env.AWSRegion,
		env.AWSID,
		env.AWSSecret,
		env.AgentSecretKey,
		env.AuthRedisURL,
		env.ChatRedisURL,
		env.GatewayBaseURL,
		env.GatewayInstance,
	)

	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	chatRedis := redis.NewClient(&redis.Options{
		Addr:     env.Get(env.ChatRedisURL),
		Password: env.Get(env.ChatRedisPass),
		DB:       0,
	})

	publisher := websocket.NewRedisPublisher(chatRedis)
	sender := gateway.NewClient(
		env.Get(env.GatewayBaseURL),
		env.Get(env.GatewayAPIKey),
		env.Get(env.GatewayInstance),
	)

	tickets := ticketservice.New(db, publisher, sender)

	hub := websocket.NewHub()
	go hub.Run()
	handler := websocket.NewHandler(hub, tickets, chatRedis, env.Get(env.GatewayInstance))

	server := api.NewAPIServer(
		":83",
		queueManager,
		db,
		api.ServerOptions{
			Tickets:   tickets,
			Hub:       hub,
			WSHandler: handler,
		},
		router.UtilsRoutes("/api/ws/v1"),
		router.SessionRoutes("/api/ws/v1"),
	)

	server.Run()
}
