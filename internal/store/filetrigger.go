package store

import (
	"context"
	"fmt"

	"github.com/mjarkko/scripter/internal/domain"
)

func (s *Store) CreateFileTrigger(ctx context.Context, scriptID int64, path string, recursive bool) (*domain.FileTrigger, error) {
	now := nowUTC()
	res, err := s.write.ExecContext(ctx,
		`INSERT INTO file_triggers (script_id, path, recursive, created_at) VALUES (?, ?, ?, ?)`,
		scriptID, path, boolToInt(recursive), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert file trigger: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("file trigger last insert id: %w", err)
	}
	return &domain.FileTrigger{ID: id, ScriptID: scriptID, Path: path, Recursive: recursive}, nil
}

func (s *Store) ListFileTriggers(ctx context.Context) ([]domain.FileTrigger, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, script_id, path, recursive FROM file_triggers ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list file triggers: %w", err)
	}
	defer rows.Close()

	var out []domain.FileTrigger
	for rows.Next() {
		var (
			ft        domain.FileTrigger
			recursive int
		)
		if err := rows.Scan(&ft.ID, &ft.ScriptID, &ft.Path, &recursive); err != nil {
			return nil, fmt.Errorf("scan file trigger: %w", err)
		}
		ft.Recursive = recursive != 0
		out = append(out, ft)
	}
	return out, rows.Err()
}

func (s *Store) RemoveFileTrigger(ctx context.Context, id int64) error {
	res, err := s.write.ExecContext(ctx, `DELETE FROM file_triggers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove file trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("file trigger rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrFileTriggerNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
