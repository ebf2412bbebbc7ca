package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when the requested project does not exist.
var ErrNotFound = errors.New("project not found")

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// projectCols is the standard SELECT column list for scanProject.
const projectCols = `id, owner_id, name, slug, artifact, messages,
	created_at, updated_at, last_edited_at`

// Store manages project persistence backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a project Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: pool, logger: logger}, nil
}

// Insert creates a new project for the given owner.
//
// Insert mints what the caller has not supplied: an empty Name becomes a
// placeholder, and the Slug is always derived from the name plus a timestamp
// disambiguator. On success the Project's ID, Slug and timestamps are filled
// from the inserted row.
func (s *Store) Insert(ctx context.Context, p *Project) error {
	if p.OwnerID == "" {
		return fmt.Errorf("insert project: owner id is required")
	}
	if p.Name == "" {
		p.Name = "Untitled Project"
	}
	if p.Slug == "" {
		p.Slug = MintSlug(p.Name, time.Now())
	}

	messages, err := marshalMessages(p.Messages)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	row := s.db.QueryRow(ctx, `INSERT INTO projects (owner_id, name, slug, artifact, messages)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at, last_edited_at`,
		p.OwnerID, p.Name, p.Slug, p.Artifact, messages)

	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &p.LastEditedAt); err != nil {
		return fmt.Errorf("insert project %q: %w", p.Name, err)
	}

	s.logger.Debug("inserted project",
		"id", p.ID,
		"slug", p.Slug,
		"owner", p.OwnerID)
	return nil
}

// Update overwrites a project's content fields and timestamps.
// The slug is deliberately not touched so existing project URLs stay valid.
// Returns ErrNotFound if the project does not exist.
func (s *Store) Update(ctx context.Context, p *Project) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("update project: id is required")
	}

	messages, err := marshalMessages(p.Messages)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}

	row := s.db.QueryRow(ctx, `UPDATE projects
		SET name = $2, artifact = $3, messages = $4,
		    updated_at = now(), last_edited_at = now()
		WHERE id = $1
		RETURNING updated_at, last_edited_at`,
		p.ID, p.Name, p.Artifact, messages)

	if err := row.Scan(&p.UpdatedAt, &p.LastEditedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update project %s: %w", p.ID, err)
	}

	s.logger.Debug("updated project", "id", p.ID)
	return nil
}

// Get retrieves a project by ID.
// Returns ErrNotFound if the project does not exist.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Project, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE id = $1`, id)

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

// GetBySlug retrieves a project by its slug.
// Returns ErrNotFound if the project does not exist.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Project, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE slug = $1`, slug)

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project by slug %q: %w", slug, err)
	}
	return p, nil
}

// ListByOwner returns an owner's projects, most recently updated first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*Project, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+projectCols+` FROM projects
		WHERE owner_id = $1
		ORDER BY updated_at DESC
		LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list projects for %q: %w", ownerID, err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("list projects for %q: %w", ownerID, err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects for %q: %w", ownerID, err)
	}
	return projects, nil
}

// Delete removes a project by ID.
// Returns ErrNotFound if the project does not exist.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.logger.Debug("deleted project", "id", id)
	return nil
}

// scanProject scans one row into a Project.
func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	var messages []byte

	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Slug, &p.Artifact, &messages,
		&p.CreatedAt, &p.UpdatedAt, &p.LastEditedAt); err != nil {
		return nil, err
	}

	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &p.Messages); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
	}
	return &p, nil
}

// marshalMessages serializes the conversation for the JSONB column.
func marshalMessages(messages []*Message) ([]byte, error) {
	if messages == nil {
		messages = []*Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}
	return data, nil
}
