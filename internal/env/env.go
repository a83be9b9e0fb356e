package env

import (
	"os"
)

const (
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	AgentSecretKey   = "AGENT_SECRET"
	AgentAccessKey   = "AGENT_ACCESS_KEY"
	AuthRedisURL     = "AUTH_REDIS_URL"
	AuthRedisPass    = "AUTH_REDIS_PASS"
	ChatRedisURL     = "CHAT_REDIS_URL"
	ChatRedisPass    = "CHAT_REDIS_PASS"
	GatewayBaseURL   = "GATEWAY_BASE_URL"
	GatewayAPIKey    = "GATEWAY_API_KEY"
	GatewayInstance  = "GATEWAY_INSTANCE"
	GatewayWSURL     = "GATEWAY_WS_URL"
	WebhookToken     = "WEBHOOK_TOKEN"
)

// MustHave fails fast on missing configuration. Each binary calls it at
// startup with the keys it actually needs.
func MustHave(keys ...string) {
	for _, key := range keys {
		if os.Getenv(key) == "" {
			panic("env: required environment variable not set: " + key)
		}
	}
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}
