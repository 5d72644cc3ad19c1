package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore handles session persistence using GORM. One GormStore owns one
// connection pool and is shared by every request.
type GormStore struct {
	db    *gorm.DB
	clock stampClock
}

// NewGormStore opens a connection pool with the given dialector and migrates the tables
func NewGormStore(dialector gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Auto-migrate tables
	if err := db.AutoMigrate(&Session{}, &Message{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	return &GormStore{db: db}, nil
}

// NewMySqlStore creates a store backed by MySQL. Times are always parsed into time.Time.
func NewMySqlStore(cfg mysql.Config) (*GormStore, error) {
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return NewGormStore(gormmysql.Open(cfg.FormatDSN()))
}

// NewPostgresStore creates a store backed by PostgreSQL (pgx)
func NewPostgresStore(dsn string) (*GormStore, error) {
	return NewGormStore(postgres.Open(dsn))
}

// NewSqliteStore creates a store backed by a SQLite file
func NewSqliteStore(path string) (*GormStore, error) {
	return NewGormStore(sqlite.Open(path))
}

// CreateSession creates a new session in the database
func (s *GormStore) CreateSession(ctx context.Context, ownerID string, metadata Metadata) (*Session, error) {
	if metadata == nil {
		metadata = Metadata{}
	}

	now := time.Now().UTC()
	session := &Session{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		CreatedAt:      now,
		LastActivityAt: now,
		Metadata:       metadata,
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// GetOwnedSession retrieves a session by ID if it belongs to the owner
func (s *GormStore) GetOwnedSession(ctx context.Context, sessionID uuid.UUID, ownerID string) (*Session, error) {
	var session Session
	err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", sessionID, ownerID).
		First(&session).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

// TouchSession bumps last_activity_at if the new value is later
func (s *GormStore) TouchSession(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	at = at.UTC()
	err := s.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ? AND last_activity_at < ?", sessionID, at).
		Update("last_activity_at", at).Error

	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return nil
}

// AppendMessages saves the messages one-by-one inside a transaction to persist ordering
func (s *GormStore) AppendMessages(ctx context.Context, messages ...*Message) error {
	if len(messages) == 0 {
		return nil
	}

	s.clock.stamp(messages)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, msg := range messages {
			if err := tx.Create(msg).Error; err != nil {
				return fmt.Errorf("failed to save %s message: %w", msg.Role, err)
			}
		}
		return nil
	})
}

// ListRecentMessages retrieves the latest messages of an owned session in chronological order
func (s *GormStore) ListRecentMessages(ctx context.Context, sessionID uuid.UUID, ownerID string, limit int) ([]*Message, error) {
	if _, err := s.GetOwnedSession(ctx, sessionID, ownerID); err != nil {
		return nil, err
	}

	// Get the latest N messages in descending order first
	query := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []*Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve messages: %w", err)
	}

	sortMessages(messages)
	return messages, nil
}

// Ping checks the database connection
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	return sqlDB.Close()
}
