package treeserver

import (
	"context"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// TreeNode is the persisted form of one leaf.
type TreeNode struct {
	Path      string `gorm:"primaryKey;size:512"`
	Value     string
	UpdatedAt time.Time
}

// GormStore persists the tree to Postgres, one row per leaf.
type GormStore struct {
	db *gorm.DB
}

func OpenGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&TreeNode{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Load(ctx context.Context) (map[string]string, error) {
	var rows []TreeNode
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	nodes := make(map[string]string, len(rows))
	for _, row := range rows {
		nodes[row.Path] = row.Value
	}
	return nodes, nil
}

func (s *GormStore) Put(ctx context.Context, path, value string) error {
	node := TreeNode{Path: path, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&node).Error
}

func (s *GormStore) Delete(ctx context.Context, path string) error {
	return s.db.WithContext(ctx).Delete(&TreeNode{}, "path = ?", path).Error
}
