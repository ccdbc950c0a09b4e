package github

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunFetcher = (*Pool)(nil)

type poolEntry struct {
	token  string
	client *Client
}

// Pool implements driven.RunFetcher on top of per-server Clients. One Client
// is kept per server base URL so it keeps its ETag cache and rate limit
// state across refreshes. When the token for a server changes, the old
// Client is dropped and a new one is built.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]poolEntry
	newFn   func(baseURL, token string) (*Client, error)
}

// NewPool creates an empty Pool that builds clients with NewClient.
func NewPool() *Pool {
	return NewPoolWithFactory(NewClient)
}

// NewPoolWithFactory creates a Pool that builds clients with newFn. Tests use
// it to point every server at an httptest server.
func NewPoolWithFactory(newFn func(baseURL, token string) (*Client, error)) *Pool {
	return &Pool{
		clients: make(map[string]poolEntry),
		newFn:   newFn,
	}
}

// FetchRuns resolves the Client for server and token and fetches the runs.
func (p *Pool) FetchRuns(ctx context.Context, server model.Server, token, repoFullName, branch, workflowID string, maxResults int) ([]model.RunRecord, error) {
	client, err := p.get(server.BaseURL, token)
	if err != nil {
		return nil, err
	}
	return client.FetchRuns(ctx, repoFullName, branch, workflowID, maxResults)
}

// Len returns the number of live clients.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

func (p *Pool) get(baseURL, token string) (*Client, error) {
	p.mu.RLock()
	entry, ok := p.clients[baseURL]
	p.mu.RUnlock()
	if ok && entry.token == token {
		return entry.client, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.clients[baseURL]; ok && entry.token == token {
		return entry.client, nil
	}

	client, err := p.newFn(baseURL, token)
	if err != nil {
		return nil, err
	}
	if ok {
		slog.Debug("github client replaced after token change", "base_url", baseURL)
	}
	p.clients[baseURL] = poolEntry{token: token, client: client}
	return client, nil
}
