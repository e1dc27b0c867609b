package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mjarkko/scripter/internal/domain"
)

func (s *Store) CreateScript(ctx context.Context, name, command, cwd string) (*domain.Script, error) {
	now := nowUTC()
	var cwdArg any
	if cwd != "" {
		cwdArg = cwd
	}
	res, err := s.write.ExecContext(ctx,
		`INSERT INTO scripts (name, command, working_dir, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		name, command, cwdArg, formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueConstraint(err) {
			return nil, domain.ErrNameConflict
		}
		return nil, fmt.Errorf("insert script: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("script last insert id: %w", err)
	}
	return &domain.Script{ID: id, Name: name, Command: command, Cwd: cwd, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Store) GetScript(ctx context.Context, id int64) (*domain.Script, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, name, command, working_dir, created_at, updated_at FROM scripts WHERE id = ?`, id)
	return scanScript(row)
}

func (s *Store) GetScriptByName(ctx context.Context, name string) (*domain.Script, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, name, command, working_dir, created_at, updated_at FROM scripts WHERE name = ?`, name)
	return scanScript(row)
}

func (s *Store) ListScripts(ctx context.Context) ([]domain.Script, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, name, command, working_dir, created_at, updated_at FROM scripts ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer rows.Close()

	var out []domain.Script
	for rows.Next() {
		sc, err := scanScriptRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanScript(row scannable) (*domain.Script, error) {
	sc, err := scanScriptRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrScriptNotFound
	}
	return sc, err
}

func scanScriptRow(row scannable) (*domain.Script, error) {
	var (
		sc        domain.Script
		cwd       sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&sc.ID, &sc.Name, &sc.Command, &cwd, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan script: %w", err)
	}
	sc.Cwd = cwd.String
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse script created_at: %w", err)
	}
	sc.CreatedAt = t
	t, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse script updated_at: %w", err)
	}
	sc.UpdatedAt = t
	return &sc, nil
}

func isUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "constraint failed")
}
