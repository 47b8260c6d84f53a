package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// CreateCodeBlock inserts a new exercise owned by userID
func (p *Postgres) CreateCodeBlock(ctx context.Context, title, description, initialCode, solution, userID string) (CodeBlock, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO codeblocks (title, description, initial_code, solution, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, title, description, initial_code, solution, created_by, created_at, updated_at
	`, title, description, initialCode, solution, userID)
	return scanCodeBlock(row)
}

// UpdateCodeBlock replaces an exercise's content
func (p *Postgres) UpdateCodeBlock(ctx context.Context, id, title, description, initialCode, solution string) (CodeBlock, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE codeblocks
		SET title = $2, description = $3, initial_code = $4, solution = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING id, title, description, initial_code, solution, created_by, created_at, updated_at
	`, id, title, description, initialCode, solution)
	return scanCodeBlock(row)
}

// ListCodeBlocks returns exercises for the lobby, oldest first
func (p *Postgres) ListCodeBlocks(ctx context.Context, limit, offset int) ([]CodeBlock, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, title, description, initial_code, solution, created_by, created_at, updated_at
		FROM codeblocks
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CodeBlock
	for rows.Next() {
		cb, err := scanCodeBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cb)
	}
	return out, rows.Err()
}

// GetCodeBlock fetches an exercise by ID
func (p *Postgres) GetCodeBlock(ctx context.Context, id string) (CodeBlock, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, title, description, initial_code, solution, created_by, created_at, updated_at
		FROM codeblocks
		WHERE id = $1
	`, id)
	return scanCodeBlock(row)
}

// InitialCode returns the seed code for a room id. A missing codeblock is not
// an error: the room simply starts empty.
func (p *Postgres) InitialCode(ctx context.Context, id string) (string, error) {
	var code string
	err := p.pool.QueryRow(ctx, `
		SELECT initial_code FROM codeblocks WHERE id = $1
	`, id).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

func scanCodeBlock(row pgx.Row) (CodeBlock, error) {
	var cb CodeBlock
	err := row.Scan(&cb.ID, &cb.Title, &cb.Description, &cb.InitialCode, &cb.Solution,
		&cb.CreatedBy, &cb.CreatedAt, &cb.UpdatedAt)
	if err != nil {
		return CodeBlock{}, err
	}
	return cb, nil
}
