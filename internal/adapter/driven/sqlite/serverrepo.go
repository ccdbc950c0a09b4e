package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ServerStore = (*ServerRepo)(nil)

// ServerRepo is the SQLite implementation of the ServerStore port interface.
type ServerRepo struct {
	db *DB
}

// NewServerRepo creates a new ServerRepo backed by the given DB.
func NewServerRepo(db *DB) *ServerRepo {
	return &ServerRepo{db: db}
}

// Add inserts a server and returns it with its assigned ID. The base URL must
// be unique; an empty base URL stands for the public GitHub API.
func (r *ServerRepo) Add(ctx context.Context, server model.Server) (model.Server, error) {
	const query = `INSERT INTO servers (name, base_url, added_at) VALUES (?, ?, ?)`

	if server.AddedAt.IsZero() {
		server.AddedAt = time.Now().UTC().Truncate(time.Second)
	}

	result, err := r.db.Writer.ExecContext(ctx, query, server.Name, server.BaseURL, server.AddedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return model.Server{}, fmt.Errorf("add server %q: %w", server.BaseURL, driven.ErrServerAlreadyExists)
		}
		return model.Server{}, fmt.Errorf("add server %q: %w", server.BaseURL, err)
	}

	server.ID, err = result.LastInsertId()
	if err != nil {
		return model.Server{}, fmt.Errorf("get last insert id: %w", err)
	}

	return server, nil
}

// Get retrieves a server by ID. Returns ErrServerNotFound if it does not exist.
func (r *ServerRepo) Get(ctx context.Context, id int64) (model.Server, error) {
	const query = `SELECT id, name, base_url, added_at FROM servers WHERE id = ?`

	server, err := scanServer(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Server{}, fmt.Errorf("get server %d: %w", id, driven.ErrServerNotFound)
	}
	if err != nil {
		return model.Server{}, fmt.Errorf("get server %d: %w", id, err)
	}

	return server, nil
}

// ListAll returns all servers ordered by ID.
func (r *ServerRepo) ListAll(ctx context.Context) ([]model.Server, error) {
	const query = `SELECT id, name, base_url, added_at FROM servers ORDER BY id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var servers []model.Server
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, server)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate servers: %w", err)
	}

	return servers, nil
}

func scanServer(s scanner) (model.Server, error) {
	var server model.Server
	var addedAt string

	if err := s.Scan(&server.ID, &server.Name, &server.BaseURL, &addedAt); err != nil {
		return model.Server{}, err
	}

	t, err := parseTime(addedAt)
	if err != nil {
		return model.Server{}, fmt.Errorf("parse added_at: %w", err)
	}
	server.AddedAt = t

	return server, nil
}
