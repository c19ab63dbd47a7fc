package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"carbon-scribe/credit-registry-backend/internal/ids"
)

// recordRow is the single table behind every Postgres collection. Each
// entity is kept as a JSONB document keyed by (kind, id).
type recordRow struct {
	Kind      string         `gorm:"primaryKey;size:64"`
	ID        string         `gorm:"primaryKey;size:64"`
	Version   int64          `gorm:"not null"`
	Body      datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null;index"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (recordRow) TableName() string { return "registry_records" }

// PostgresOptions configures the connection pool.
type PostgresOptions struct {
	DSN            string
	MaxConnections int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	LogSQL         bool
}

// OpenPostgres connects through the lib/pq driver and hands the pool to gorm.
func OpenPostgres(opts PostgresOptions) (*gorm.DB, error) {
	sqlDB, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxConnections > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxConnections)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.MaxLifetime)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logMode := logger.Silent
	if opts.LogSQL {
		logMode = logger.Info
	}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialise gorm: %w", err)
	}
	return db, nil
}

// MigratePostgres creates the records table.
func MigratePostgres(db *gorm.DB) error {
	if err := db.AutoMigrate(&recordRow{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// PostgresCollection stores one entity kind in the shared records table.
type PostgresCollection[T any, P Record[T]] struct {
	db   *gorm.DB
	kind Kind
}

func NewPostgres[T any, P Record[T]](db *gorm.DB, kind Kind) *PostgresCollection[T, P] {
	return &PostgresCollection[T, P]{db: db, kind: kind}
}

func (c *PostgresCollection[T, P]) Kind() Kind { return c.kind }

func (c *PostgresCollection[T, P]) Insert(ctx context.Context, rec *T) (string, error) {
	p := P(rec)
	meta := prepareInsert[T, P](c.kind, p, ids.New)

	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", c.kind.Name, err)
	}
	row := recordRow{
		Kind:      c.kind.Name,
		ID:        meta.ID,
		Version:   meta.Version,
		Body:      datatypes.JSON(body),
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
	}
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%s %s: %w", c.kind.Name, meta.ID, ErrDuplicate)
		}
		return "", fmt.Errorf("failed to insert %s: %w", c.kind.Name, err)
	}
	return meta.ID, nil
}

func (c *PostgresCollection[T, P]) Get(ctx context.Context, id string) (*T, error) {
	row, err := c.getRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.decode(row)
}

func (c *PostgresCollection[T, P]) List(ctx context.Context, match func(*T) bool) ([]*T, error) {
	var rows []recordRow
	err := c.db.WithContext(ctx).
		Where("kind = ?", c.kind.Name).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.kind.Name, err)
	}

	out := make([]*T, 0, len(rows))
	for i := range rows {
		rec, err := c.decode(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return matchAll(match, out), nil
}

func (c *PostgresCollection[T, P]) Update(ctx context.Context, id string, mutate func(*T) error) (*T, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		row, err := c.getRow(ctx, id)
		if err != nil {
			return nil, err
		}
		rec, err := c.decode(row)
		if err != nil {
			return nil, err
		}
		prev, err := applyMutation[T, P](P(rec), mutate)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", c.kind.Name, err)
		}
		meta := P(rec).RecordMeta()
		result := c.db.WithContext(ctx).
			Model(&recordRow{}).
			Where("kind = ? AND id = ? AND version = ?", c.kind.Name, id, prev).
			Updates(map[string]interface{}{
				"version":    meta.Version,
				"body":       datatypes.JSON(body),
				"updated_at": meta.UpdatedAt,
			})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update %s: %w", c.kind.Name, result.Error)
		}
		if result.RowsAffected == 1 {
			return rec, nil
		}
	}
	return nil, ErrConflict
}

func (c *PostgresCollection[T, P]) Delete(ctx context.Context, id string) error {
	result := c.db.WithContext(ctx).
		Where("kind = ? AND id = ?", c.kind.Name, id).
		Delete(&recordRow{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete %s: %w", c.kind.Name, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *PostgresCollection[T, P]) getRow(ctx context.Context, id string) (*recordRow, error) {
	var row recordRow
	err := c.db.WithContext(ctx).
		Where("kind = ? AND id = ?", c.kind.Name, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", c.kind.Name, err)
	}
	return &row, nil
}

func (c *PostgresCollection[T, P]) decode(row *recordRow) (*T, error) {
	rec := new(T)
	if err := json.Unmarshal(row.Body, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", c.kind.Name, row.ID, err)
	}
	meta := P(rec).RecordMeta()
	meta.Version = row.Version
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
