package main

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ethanbaker/voicechat/pkg/utils"
	"github.com/go-sql-driver/mysql"
	gorm_mysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ConversationStore maps a Discord channel or thread to a voice session id
type ConversationStore interface {
	Get(key string) (string, bool)
	Set(key, sessionID string) error
	Delete(key string) error
}

// DiscordSession is a channel binding row. Maps DiscordID -> SessionID
type DiscordSession struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	DiscordID string `gorm:"uniqueIndex;not null;size:191"` // Discord channel/thread ID
	SessionID string `gorm:"not null;size:64"`              // Voice session UUID
}

// TableName sets the table name for GORM
func (DiscordSession) TableName() string {
	return "discord_sessions"
}

// openConversationStore uses MySQL when MYSQL_DATABASE is set, memory otherwise
func openConversationStore(cfg *utils.Config) (ConversationStore, error) {
	if cfg.Get("MYSQL_DATABASE") == "" {
		log.Println("[DISCORD]: Warning, MYSQL_DATABASE not set, channel bindings will not survive restarts")
		return NewInMemoryStore(), nil
	}

	dbConfig := mysql.Config{
		User:      cfg.Get("MYSQL_USER"),
		Passwd:    cfg.Get("MYSQL_ROOT_PASSWORD"),
		Net:       "tcp",
		Addr:      fmt.Sprintf("%s:%s", cfg.GetWithDefault("MYSQL_HOST", "localhost"), cfg.GetWithDefault("MYSQL_PORT", "3306")),
		DBName:    cfg.Get("MYSQL_DATABASE"),
		ParseTime: true,
	}

	return NewSqlStore(dbConfig.FormatDSN())
}

// InMemoryStore keeps bindings for the lifetime of the process
type InMemoryStore struct {
	mu      sync.RWMutex
	channel map[string]string
}

// NewInMemoryStore initializes a new InMemoryStore
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{channel: make(map[string]string)}
}

// Get retrieves the session id bound to a channel or thread
func (s *InMemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.channel[key]
	return v, ok
}

// Set binds a session id to a channel or thread
func (s *InMemoryStore) Set(key, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channel[key] = sessionID
	return nil
}

// Delete removes a binding
func (s *InMemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.channel, key)
	return nil
}

// SqlStore persists bindings with GORM
type SqlStore struct {
	db *gorm.DB
}

// NewSqlStore opens the MySQL database and migrates the bindings table
func NewSqlStore(dsn string) (*SqlStore, error) {
	db, err := gorm.Open(gorm_mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return &SqlStore{db: db}, db.AutoMigrate(&DiscordSession{})
}

// Get retrieves the session id bound to a channel or thread
func (s *SqlStore) Get(key string) (string, bool) {
	var binding DiscordSession
	result := s.db.Where("discord_id = ?", key).First(&binding)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Printf("[SQL-STORE]: error retrieving session for key %s: %v", key, result.Error)
		}
		return "", false
	}
	return binding.SessionID, true
}

// Set binds a session id to a channel or thread, replacing any previous binding
func (s *SqlStore) Set(key, sessionID string) error {
	return s.db.
		Where(DiscordSession{DiscordID: key}).
		Assign(DiscordSession{SessionID: sessionID}).
		FirstOrCreate(&DiscordSession{}).Error
}

// Delete removes a binding
func (s *SqlStore) Delete(key string) error {
	return s.db.Where("discord_id = ?", key).Delete(&DiscordSession{}).Error
}
