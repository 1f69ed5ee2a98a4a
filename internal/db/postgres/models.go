package postgres

import (
	"time"

	pgvec "github.com/pgvector/pgvector-go"
)

// embeddingRecord is one cached embedding, keyed by (entity_type, entity_id).
type embeddingRecord struct {
	EntityType  string       `gorm:"primaryKey;size:32"`
	EntityID    string       `gorm:"primaryKey;size:256"`
	ContentHash string       `gorm:"size:64;not null"`
	Model       string       `gorm:"size:128;not null"`
	Vector      pgvec.Vector `gorm:"type:vector(1536)"`
	CreatedAt   time.Time
}

func (embeddingRecord) TableName() string { return "embeddings" }

// groupRecord is one persisted correlation group, stored as a JSON payload.
type groupRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	Payload   []byte `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
}

func (groupRecord) TableName() string { return "groups" }

// classificationRecord is one persisted classification result.
type classificationRecord struct {
	SignalKey string `gorm:"primaryKey;size:512"`
	Payload   []byte `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
}

func (classificationRecord) TableName() string { return "classifications" }
