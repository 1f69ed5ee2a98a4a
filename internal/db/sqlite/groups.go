package sqlite

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/cohort/pkg/models"
)

// ReplaceGroups atomically replaces all stored groups with the given set.
func (s *Store) ReplaceGroups(ctx context.Context, groups []*models.Group) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin group replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM groups`); err != nil {
		return fmt.Errorf("clear groups: %w", err)
	}

	now := time.Now().UTC().Unix()
	for _, g := range groups {
		payload, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("encode group %s: %w", g.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO groups (id, payload, created_at) VALUES (?, ?, ?)`,
			g.ID, payload, now); err != nil {
			return fmt.Errorf("insert group %s: %w", g.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group replace: %w", err)
	}
	return nil
}

// SaveClassifications upserts classification results keyed by signal.
func (s *Store) SaveClassifications(ctx context.Context, msgs []models.ClassifiedMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin classification save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO classifications (signal_key, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (signal_key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("prepare classification save: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, m := range msgs {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode classification %s: %w", m.Signal.Key(), err)
		}
		if _, err := stmt.ExecContext(ctx, m.Signal.Key(), payload, now); err != nil {
			return fmt.Errorf("save classification %s: %w", m.Signal.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit classification save: %w", err)
	}
	return nil
}
