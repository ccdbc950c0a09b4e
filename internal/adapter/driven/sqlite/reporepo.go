package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TrackedRepoStore = (*TrackedRepoRepo)(nil)

// TrackedRepoRepo is the SQLite implementation of the TrackedRepoStore port
// interface. Branches and workflows are stored as JSON arrays so their
// configured order survives a round trip.
type TrackedRepoRepo struct {
	db *DB
}

// NewTrackedRepoRepo creates a new TrackedRepoRepo backed by the given DB.
func NewTrackedRepoRepo(db *DB) *TrackedRepoRepo {
	return &TrackedRepoRepo{db: db}
}

// workflowJSON is the stored form of a model.TrackedWorkflow.
type workflowJSON struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

const trackedRepoColumns = `id, user_id, server_id, full_name, branches, workflows, added_at`

// Add inserts a new tracked repository and returns it with its assigned ID.
// Returns ErrRepoAlreadyExists if the user already tracks the same full name
// on the same server.
func (r *TrackedRepoRepo) Add(ctx context.Context, repo model.TrackedRepository) (model.TrackedRepository, error) {
	const query = `
		INSERT INTO tracked_repositories (user_id, server_id, full_name, branches, workflows, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	branches, workflows, err := encodeTracked(repo)
	if err != nil {
		return model.TrackedRepository{}, fmt.Errorf("add repository %s: %w", repo.FullName, err)
	}

	if repo.AddedAt.IsZero() {
		repo.AddedAt = time.Now().UTC().Truncate(time.Second)
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		repo.UserID, repo.ServerID, repo.FullName, branches, workflows, repo.AddedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return model.TrackedRepository{}, fmt.Errorf("add repository %s: %w", repo.FullName, driven.ErrRepoAlreadyExists)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint") {
			return model.TrackedRepository{}, fmt.Errorf("add repository %s: %w", repo.FullName, driven.ErrServerNotFound)
		}
		return model.TrackedRepository{}, fmt.Errorf("add repository %s: %w", repo.FullName, err)
	}

	repo.ID, err = result.LastInsertId()
	if err != nil {
		return model.TrackedRepository{}, fmt.Errorf("get last insert id: %w", err)
	}

	return repo, nil
}

// Get retrieves one of userID's tracked repositories. Returns ErrRepoNotFound
// if it does not exist or belongs to another user.
func (r *TrackedRepoRepo) Get(ctx context.Context, userID string, id int64) (model.TrackedRepository, error) {
	query := `SELECT ` + trackedRepoColumns + ` FROM tracked_repositories WHERE id = ? AND user_id = ?`

	repo, err := scanTrackedRepo(r.db.Reader.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.TrackedRepository{}, fmt.Errorf("get repository %d: %w", id, driven.ErrRepoNotFound)
	}
	if err != nil {
		return model.TrackedRepository{}, fmt.Errorf("get repository %d: %w", id, err)
	}

	return repo, nil
}

// ListByUser returns userID's tracked repositories ordered by full name.
func (r *TrackedRepoRepo) ListByUser(ctx context.Context, userID string) ([]model.TrackedRepository, error) {
	query := `SELECT ` + trackedRepoColumns + ` FROM tracked_repositories WHERE user_id = ? ORDER BY full_name, server_id`
	return r.list(ctx, query, userID)
}

// ListAll returns every tracked repository of every user.
func (r *TrackedRepoRepo) ListAll(ctx context.Context) ([]model.TrackedRepository, error) {
	query := `SELECT ` + trackedRepoColumns + ` FROM tracked_repositories ORDER BY user_id, full_name, server_id`
	return r.list(ctx, query)
}

// Remove deletes one of userID's tracked repositories. Returns
// ErrRepoNotFound if nothing was deleted.
func (r *TrackedRepoRepo) Remove(ctx context.Context, userID string, id int64) error {
	const query = `DELETE FROM tracked_repositories WHERE id = ? AND user_id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("remove repository %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("remove repository %d: %w", id, driven.ErrRepoNotFound)
	}

	return nil
}

func (r *TrackedRepoRepo) list(ctx context.Context, query string, args ...any) ([]model.TrackedRepository, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.TrackedRepository
	for rows.Next() {
		repo, err := scanTrackedRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

func encodeTracked(repo model.TrackedRepository) (string, string, error) {
	branches := repo.Branches
	if branches == nil {
		branches = []string{}
	}
	b, err := json.Marshal(branches)
	if err != nil {
		return "", "", fmt.Errorf("encode branches: %w", err)
	}

	wfs := make([]workflowJSON, 0, len(repo.Workflows))
	for _, wf := range repo.Workflows {
		wfs = append(wfs, workflowJSON{ID: wf.ID, Name: wf.Name, Path: wf.Path})
	}
	w, err := json.Marshal(wfs)
	if err != nil {
		return "", "", fmt.Errorf("encode workflows: %w", err)
	}

	return string(b), string(w), nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTrackedRepo(s scanner) (model.TrackedRepository, error) {
	var repo model.TrackedRepository
	var branches, workflows, addedAt string

	err := s.Scan(&repo.ID, &repo.UserID, &repo.ServerID, &repo.FullName, &branches, &workflows, &addedAt)
	if err != nil {
		return model.TrackedRepository{}, err
	}

	if err := json.Unmarshal([]byte(branches), &repo.Branches); err != nil {
		return model.TrackedRepository{}, fmt.Errorf("decode branches: %w", err)
	}

	var wfs []workflowJSON
	if err := json.Unmarshal([]byte(workflows), &wfs); err != nil {
		return model.TrackedRepository{}, fmt.Errorf("decode workflows: %w", err)
	}
	repo.Workflows = make([]model.TrackedWorkflow, 0, len(wfs))
	for _, wf := range wfs {
		repo.Workflows = append(repo.Workflows, model.TrackedWorkflow{ID: wf.ID, Name: wf.Name, Path: wf.Path})
	}

	repo.AddedAt, err = parseTime(addedAt)
	if err != nil {
		return model.TrackedRepository{}, fmt.Errorf("parse added_at: %w", err)
	}

	return repo, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
