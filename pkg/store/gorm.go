package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Aarogya/models"
	"Aarogya/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormStore keeps conversations and messages in two tables. Appends insert
// message rows, so concurrent appends never overwrite each other.
type GormStore struct {
	db  *gorm.DB
	log zerolog.Logger
	now func() time.Time
}

// OpenGorm opens a SQLite or MySQL database and migrates the schema.
func OpenGorm(driver, dsn string, log zerolog.Logger) (*GormStore, error) {
	var dial gorm.Dialector
	switch driver {
	case "mysql":
		dial = mysql.Open(dsn)
	case "sqlite", "":
		dial = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if driver != "mysql" {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewGormStore(db, log)
}

func NewGormStore(db *gorm.DB, log zerolog.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&models.Conversation{}, &models.Message{}); err != nil {
		return nil, fmt.Errorf("failed migrate: %w", err)
	}
	return &GormStore{db: db, log: log, now: time.Now}, nil
}

func orderedMessages(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func (s *GormStore) Create(ctx context.Context, ownerID, name string, initial []models.Message) (*models.Conversation, error) {
	defer observe("sql", "create", time.Now())
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.New(apperr.KindValidation, "owner is required")
	}
	if len(initial) > 0 {
		if err := validateMessages(initial); err != nil {
			return nil, err
		}
	}

	conv := &models.Conversation{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Name:     normalizeName(name),
		Messages: append([]models.Message(nil), initial...),
	}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, s.fail("create", err)
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	return conv, nil
}

func (s *GormStore) FindByIDForOwner(ctx context.Context, id, ownerID string) (*models.Conversation, error) {
	defer observe("sql", "find", time.Now())
	return s.find(s.db.WithContext(ctx), id, ownerID)
}

func (s *GormStore) find(db *gorm.DB, id, ownerID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := db.Preload("Messages", orderedMessages).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&conv).Error
	if err != nil {
		return nil, s.fail("find", err)
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	return &conv, nil
}

func (s *GormStore) ListForOwner(ctx context.Context, ownerID string, filter ListFilter) ([]models.Conversation, error) {
	defer observe("sql", "list", time.Now())
	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", orderedMessages).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, s.fail("list", err)
	}

	out := make([]models.Conversation, 0, len(convs))
	for i := range convs {
		if !filter.matches(&convs[i]) {
			continue
		}
		if convs[i].Messages == nil {
			convs[i].Messages = []models.Message{}
		}
		out = append(out, convs[i])
	}
	return out, nil
}

func (s *GormStore) AppendMessages(ctx context.Context, id, ownerID string, msgs []models.Message) (*models.Conversation, error) {
	defer observe("sql", "append", time.Now())
	if err := validateMessages(msgs); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireOwned(tx, id, ownerID); err != nil {
			return err
		}
		rows := make([]models.Message, len(msgs))
		for i, m := range msgs {
			rows[i] = models.Message{
				ConversationID: id,
				Role:           m.Role,
				Content:        m.Content,
				Timestamp:      m.Timestamp,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			UpdateColumn("updated_at", s.now()).Error
	})
	if err != nil {
		return nil, s.fail("append", err)
	}
	return s.find(s.db.WithContext(ctx), id, ownerID)
}

func (s *GormStore) Rename(ctx context.Context, id, ownerID, newName string) (*models.Conversation, error) {
	defer observe("sql", "rename", time.Now())
	name, err := validateRename(newName)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireOwned(tx, id, ownerID); err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			UpdateColumns(map[string]any{"name": name, "updated_at": s.now()}).Error
	})
	if err != nil {
		return nil, s.fail("rename", err)
	}
	return s.find(s.db.WithContext(ctx), id, ownerID)
}

func (s *GormStore) DeleteOne(ctx context.Context, id, ownerID string) (bool, error) {
	defer observe("sql", "delete", time.Now())
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error
	})
	if err != nil {
		return false, s.fail("delete", err)
	}
	return deleted, nil
}

func (s *GormStore) DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error) {
	defer observe("sql", "delete_all", time.Now())
	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&models.Conversation{}).Select("id").Where("owner_id = ?", ownerID)
		if err := tx.Where("conversation_id IN (?)", owned).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("owner_id = ?", ownerID).Delete(&models.Conversation{})
		count = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, s.fail("delete_all", err)
	}
	return count, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return s.fail("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return s.fail("ping", err)
	}
	return nil
}

func (s *GormStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) requireOwned(tx *gorm.DB, id, ownerID string) error {
	var n int64
	if err := tx.Model(&models.Conversation{}).Where("id = ? AND owner_id = ?", id, ownerID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) fail(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.KindNotFound, "conversation not found")
	}
	s.log.Error().Err(err).Str("op", op).Msg("store operation failed")
	return apperr.Wrap(apperr.KindStoreUnavailable, "store unavailable", err)
}
