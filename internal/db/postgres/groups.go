package postgres

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/cohort/pkg/models"
)

// ReplaceGroups atomically replaces all stored groups with the given set.
func (s *Store) ReplaceGroups(ctx context.Context, groups []*models.Group) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&groupRecord{}).Error; err != nil {
			return fmt.Errorf("clear groups: %w", err)
		}
		if len(groups) == 0 {
			return nil
		}

		now := time.Now().UTC()
		recs := make([]groupRecord, len(groups))
		for i, g := range groups {
			payload, err := json.Marshal(g)
			if err != nil {
				return fmt.Errorf("encode group %s: %w", g.ID, err)
			}
			recs[i] = groupRecord{ID: g.ID, Payload: payload, CreatedAt: now}
		}
		if err := tx.Create(&recs).Error; err != nil {
			return fmt.Errorf("insert groups: %w", err)
		}
		return nil
	})
}

// SaveClassifications upserts classification results keyed by signal.
func (s *Store) SaveClassifications(ctx context.Context, msgs []models.ClassifiedMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	recs := make([]classificationRecord, len(msgs))
	for i, m := range msgs {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode classification %s: %w", m.Signal.Key(), err)
		}
		recs[i] = classificationRecord{SignalKey: m.Signal.Key(), Payload: payload, CreatedAt: now}
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "signal_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "created_at"}),
	}).Create(&recs).Error
	if err != nil {
		return fmt.Errorf("save classifications (%d): %w", len(msgs), err)
	}
	return nil
}
