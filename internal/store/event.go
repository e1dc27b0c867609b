package store

import (
	"context"
	"database/sql"
	"fmt"
)

// PublishEvent inserts the event and, in the same transaction,
// materializes one unprocessed delivery per current subscriber on the
// topic — fan-out happens at publish time so polling deliveries is a
// flat claim-by-row scan with no subscription lookup.
func (s *Store) PublishEvent(ctx context.Context, topic string, payload []byte) (int64, error) {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin publish tx: %w", err)
	}
	defer tx.Rollback()

	now := nowUTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (topic, payload_json, created_at_utc) VALUES (?, ?, ?)`,
		topic, payload, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	eventID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("event last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO deliveries (event_id, subscription_id, claimed_at_utc, claimed_by, processed_at_utc)
		SELECT ?, s.id, NULL, NULL, NULL FROM subscriptions s WHERE s.topic = ?
	`, eventID, topic); err != nil {
		return 0, fmt.Errorf("materialize deliveries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit publish tx: %w", err)
	}
	return eventID, nil
}

// Subscribe binds scriptID to topic and backfills a delivery for every
// event already published on that topic, so late subscribers still
// receive history accumulated before they joined.
func (s *Store) Subscribe(ctx context.Context, topic string, scriptID int64) (int64, error) {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin subscribe tx: %w", err)
	}
	defer tx.Rollback()

	now := nowUTC()
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscriptions (topic, script_id, created_at_utc) VALUES (?, ?, ?)`,
		topic, scriptID, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("insert subscription: %w", err)
	}

	// INSERT OR IGNORE leaves last_insert_rowid unchanged when the
	// subscription already exists, so the affected-row count decides
	// whether the new id can be used or the existing row must be looked up.
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("subscription rows affected: %w", err)
	}
	var subID int64
	if inserted > 0 {
		if subID, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("subscription last insert id: %w", err)
		}
	} else {
		row := tx.QueryRowContext(ctx, `SELECT id FROM subscriptions WHERE topic = ? AND script_id = ?`, topic, scriptID)
		if err := row.Scan(&subID); err != nil {
			return 0, fmt.Errorf("find existing subscription: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO deliveries (event_id, subscription_id, claimed_at_utc, claimed_by, processed_at_utc)
		SELECT e.id, ?, NULL, NULL, NULL FROM events e WHERE e.topic = ?
	`, subID, topic); err != nil {
		return 0, fmt.Errorf("backfill deliveries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit subscribe tx: %w", err)
	}
	return subID, nil
}

// ReadyDelivery carries enough context for the run service: the script
// to run and the identifiers the event-bus source namespaces its
// trigger id with.
type ReadyDelivery struct {
	DeliveryID int64
	EventID    int64
	ScriptID   int64
	Topic      string
	Payload    []byte
}

// ClaimReadyDeliveries atomically sets claimed_at/claimed_by on up to
// limit unclaimed, unprocessed deliveries and returns them joined with
// their event and subscription.
func (s *Store) ClaimReadyDeliveries(ctx context.Context, owner string, limit int) ([]ReadyDelivery, error) {
	now := formatTime(nowUTC())

	claimRows, err := s.write.QueryContext(ctx, `
		UPDATE deliveries
		SET claimed_at_utc = ?, claimed_by = ?
		WHERE id IN (
			SELECT d.id FROM deliveries d
			WHERE d.processed_at_utc IS NULL AND d.claimed_at_utc IS NULL
			ORDER BY d.id ASC
			LIMIT ?
		)
		RETURNING id
	`, now, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("claim ready deliveries: %w", err)
	}

	var ids []int64
	for claimRows.Next() {
		var id int64
		if err := claimRows.Scan(&id); err != nil {
			claimRows.Close()
			return nil, fmt.Errorf("scan claimed delivery id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := claimRows.Err(); err != nil {
		claimRows.Close()
		return nil, err
	}
	claimRows.Close()

	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT d.id, d.event_id, s.script_id, e.topic, e.payload_json
		FROM deliveries d
		JOIN subscriptions s ON s.id = d.subscription_id
		JOIN events e ON e.id = d.event_id
		WHERE d.id IN (%s)
	`, joinPlaceholders(placeholders))

	rows, err := s.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch claimed deliveries: %w", err)
	}
	defer rows.Close()

	var out []ReadyDelivery
	for rows.Next() {
		var (
			d       ReadyDelivery
			payload sql.NullString
		)
		if err := rows.Scan(&d.DeliveryID, &d.EventID, &d.ScriptID, &d.Topic, &payload); err != nil {
			return nil, fmt.Errorf("scan ready delivery: %w", err)
		}
		if payload.Valid {
			d.Payload = []byte(payload.String)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkDeliveryProcessed sets processed_at if it is still null. It is
// idempotent: calling it twice on the same delivery is a no-op the
// second time.
func (s *Store) MarkDeliveryProcessed(ctx context.Context, deliveryID int64) error {
	if _, err := s.write.ExecContext(ctx,
		`UPDATE deliveries SET processed_at_utc = ? WHERE id = ? AND processed_at_utc IS NULL`,
		formatTime(nowUTC()), deliveryID); err != nil {
		return fmt.Errorf("mark delivery processed: %w", err)
	}
	return nil
}

func joinPlaceholders(ph []string) string {
	out := ph[0]
	for _, p := range ph[1:] {
		out += "," + p
	}
	return out
}
