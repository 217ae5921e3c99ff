// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package gormstore persists the badge ledger in postgres via GORM.
package gormstore

import (
	"fmt"
	stdlog "log"
	"os"
	"time"

	"github.com/luxfi/badge"
	"github.com/luxfi/badge/registry"
	"github.com/luxfi/ids"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ registry.Store = (*Store)(nil)

// BadgeRow is the database representation of a badge
type BadgeRow struct {
	TokenID       uint64 `gorm:"primaryKey;column:token_id"`
	Owner         string `gorm:"size:64;index"`
	URI           string `gorm:"size:512"`
	Valid         bool
	IssuedAt      time.Time
	InvalidatedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the default gorm table name
func (BadgeRow) TableName() string {
	return "badges"
}

// Open opens a postgres connection for the given DSN. The GORM logger is
// kept silent so only errors surface.
func Open(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		stdlog.New(os.Stdout, "", stdlog.LstdFlags),
		logger.Config{
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
}

// Store implements registry.Store on a GORM database handle.
type Store struct {
	db *gorm.DB
}

// New runs migrations and returns a store over the given handle.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&BadgeRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate badge schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append inserts a newly issued badge.
func (s *Store) Append(b badge.Badge) error {
	row := BadgeRow{
		TokenID:  uint64(b.ID),
		Owner:    b.Owner.String(),
		URI:      b.URI,
		Valid:    b.Valid,
		IssuedAt: b.IssuedAt,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert badge %d: %w", b.ID, err)
	}
	return nil
}

// MarkInvalid flips the validity flag of an existing row.
func (s *Store) MarkInvalid(tokenID badge.TokenID, at time.Time) error {
	res := s.db.Model(&BadgeRow{}).
		Where("token_id = ?", uint64(tokenID)).
		Updates(map[string]interface{}{
			"valid":          false,
			"invalidated_at": at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to invalidate badge %d: %w", tokenID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", badge.ErrUnknownToken, tokenID)
	}
	return nil
}

// LoadAll reads every badge row in token id order.
func (s *Store) LoadAll() ([]badge.Badge, error) {
	var rows []BadgeRow
	if err := s.db.Order("token_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load badges: %w", err)
	}

	badges := make([]badge.Badge, 0, len(rows))
	for _, row := range rows {
		owner, err := ids.ShortFromString(row.Owner)
		if err != nil {
			return nil, fmt.Errorf("badge %d has malformed owner %q: %w", row.TokenID, row.Owner, err)
		}
		b := badge.Badge{
			ID:       badge.TokenID(row.TokenID),
			Owner:    owner,
			URI:      row.URI,
			Valid:    row.Valid,
			IssuedAt: row.IssuedAt,
		}
		if row.InvalidatedAt != nil {
			b.InvalidatedAt = *row.InvalidatedAt
		}
		badges = append(badges, b)
	}
	return badges, nil
}
