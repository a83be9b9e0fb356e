package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateAccessKey mints an agent access key with a stable wdesk_ prefix
// followed by the uppercase UUID without dashes. Keys are distributed to the
// support team out of band and exchanged for JWTs at login.
func GenerateAccessKey() string {
	key := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "wdesk_" + key
}
