package model

import (
	"fmt"
	"time"
)

// Credential holds a stored secret. Service identifies what the secret
// unlocks, e.g. "server/3" for the API token of server 3.
type Credential struct {
	ID        int64
	Service   string
	Value     string
	UpdatedAt time.Time
}

// ServerTokenService returns the credential service name for a server's API token.
func ServerTokenService(serverID int64) string {
	return fmt.Sprintf("server/%d", serverID)
}
