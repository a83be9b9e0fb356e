package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"whatsdesk-backend/internal/api"
	"whatsdesk-backend/internal/api/router"
	"whatsdesk-backend/internal/database"
	"whatsdesk-backend/internal/dto"
	"whatsdesk-backend/internal/env"
	"whatsdesk-backend/internal/gateway"
	"whatsdesk-backend/internal/queue"
	ticketservice "whatsdesk-backend/internal/service/ticket"
	"whatsdesk-backend/internal/websocket"
	"whatsdesk-backend/utils"

	"github.com/go-redis/redis/v8"
)

func main() {
	generateKey := flag.Bool("generate-agent-key", false, "print a fresh agent access key and exit")
	flag.Parse()

	if *generateKey {
		fmt.Println(utils.GenerateAccessKey())
		return
	}

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

	supervisor := gateway.NewSupervisor(gateway.SupervisorConfig{
		URL:   env.Get(env.GatewayWSURL),
		Probe: sender.Probe,
		Handle: func(ctx context.Context, event dto.GatewayEvent) error {
			_, err := tickets.Ingest(ctx, event)
			return err
		},
		OnGiveUp: func(attempts int, lastErr error) {
			log.Printf("ALERT: gateway event stream abandoned after %d attempts: %v", attempts, lastErr)
		},
	})

	// Without a stream URL the webhook is the only ingestion path.
	if env.Get(env.GatewayWSURL) != "" {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() {
			if err := supervisor.Run(ctx); err != nil {
				log.Printf("gateway supervisor stopped: %v", err)
			}
		}()
	} else {
		log.Printf("GATEWAY_WS_URL not set, running webhook-only")
	}

	server := api.NewAPIServer(
		":81",
		queueManager,
		db,
		api.ServerOptions{
			Tickets:        tickets,
			Supervisor:     supervisor,
			WebhookToken:   env.Get(env.WebhookToken),
			AgentAccessKey: env.Get(env.AgentAccessKey),
		},
		router.UtilsRoutes("/api/v1"),
		router.AuthRoutes("/api/v1"),
		router.TicketRoutes("/api/v1"),
		router.GatewayRoutes("/api/gateway/v1"),
	)

	server.Run()
}
