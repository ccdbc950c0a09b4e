// Command healthcheck checks the runpanel health endpoint from inside the
// container. It exits 0 when the service answers {"status":"ok"}.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

const defaultAddr = "127.0.0.1:8080"

func main() {
	os.Exit(check(normalizeAddr(os.Getenv("RUNPANEL_LISTEN_ADDR"))))
}

func check(addr string) int {
	client := &http.Client{Timeout: 2 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/api/v1/health", addr), nil)
	if err != nil {
		return 1
	}

	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 1
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Status != "ok" {
		return 1
	}

	return 0
}

// normalizeAddr points the check at loopback when the server binds every
// interface, since the check runs in the same container.
func normalizeAddr(raw string) string {
	if raw == "" {
		return defaultAddr
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return defaultAddr
	}

	switch host {
	case "", "0.0.0.0":
		host = "127.0.0.1"
	case "::":
		host = "::1"
	}

	return net.JoinHostPort(host, port)
}
