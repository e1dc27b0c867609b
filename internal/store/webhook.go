package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mjarkko/scripter/internal/domain"
)

func (s *Store) CreateWebhook(ctx context.Context, name string, scriptID int64) (*domain.Webhook, error) {
	res, err := s.write.ExecContext(ctx,
		`INSERT INTO webhooks (name, script_id, created_at) VALUES (?, ?, ?)`,
		name, scriptID, formatTime(nowUTC()))
	if err != nil {
		if isUniqueConstraint(err) {
			return nil, domain.ErrNameConflict
		}
		return nil, fmt.Errorf("insert webhook: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("webhook last insert id: %w", err)
	}
	return &domain.Webhook{ID: id, Name: name, ScriptID: scriptID}, nil
}

func (s *Store) GetWebhookByName(ctx context.Context, name string) (*domain.Webhook, error) {
	row := s.read.QueryRowContext(ctx, `SELECT id, name, script_id FROM webhooks WHERE name = ?`, name)
	var wh domain.Webhook
	if err := row.Scan(&wh.ID, &wh.Name, &wh.ScriptID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWebhookNotFound
		}
		return nil, fmt.Errorf("scan webhook: %w", err)
	}
	return &wh, nil
}

func (s *Store) ListWebhooks(ctx context.Context) ([]domain.Webhook, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT id, name, script_id FROM webhooks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var out []domain.Webhook
	for rows.Next() {
		var wh domain.Webhook
		if err := rows.Scan(&wh.ID, &wh.Name, &wh.ScriptID); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}

func (s *Store) RemoveWebhook(ctx context.Context, id int64) error {
	res, err := s.write.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("webhook rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrWebhookNotFound
	}
	return nil
}
