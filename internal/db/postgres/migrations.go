package postgres

import (
	gormigrate "github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations applies schema migrations in order. The pgvector extension
// must be installable by the connecting role.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202608010001_create_vector_extension",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return nil
			},
		},
		{
			ID: "202608010002_create_embeddings",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&embeddingRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&embeddingRecord{})
			},
		},
		{
			ID: "202608010003_create_groups",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&groupRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&groupRecord{})
			},
		},
		{
			ID: "202608010004_create_classifications",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&classificationRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&classificationRecord{})
			},
		},
	})

	return m.Migrate()
}
