package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
)

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) CreateOrIgnore(ctx context.Context, msg *domain.Message) error {
	model := MessageDomainToModel(msg)
	// Use INSERT OR IGNORE to skip duplicates (SQLite)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error
}

// ReplaceRoom mirrors a backfill: the cached log for the room is swapped
// for the server's ordered history.
func (r *gormMessageRepository) ReplaceRoom(ctx context.Context, roomName string, msgs []*domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_name = ?", roomName).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		for _, msg := range msgs {
			if msg.ID == "" {
				continue
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(MessageDomainToModel(msg)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *gormMessageRepository) GetByRoom(ctx context.Context, roomName string, limit, offset int) ([]*domain.Message, error) {
	var models []MessageModel
	query := r.db.WithContext(ctx).
		Where("room_name = ?", roomName).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[i] = MessageModelToDomain(&models[i])
	}
	return messages, nil
}

func (r *gormMessageRepository) MarkRoomRead(ctx context.Context, roomName string) error {
	return r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("room_name = ? AND is_read = ?", roomName, false).
		Update("is_read", true).Error
}

func (r *gormMessageRepository) Search(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	// Escape LIKE special characters to prevent SQL injection
	escapedQuery := strings.ReplaceAll(query, "%", "\\%")
	escapedQuery = strings.ReplaceAll(escapedQuery, "_", "\\_")
	likePattern := "%" + escapedQuery + "%"

	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("text LIKE ? ESCAPE '\\'", likePattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[i] = MessageModelToDomain(&models[i])
	}
	return messages, nil
}

func (r *gormMessageRepository) DeleteByRoom(ctx context.Context, roomName string) error {
	return r.db.WithContext(ctx).
		Where("room_name = ?", roomName).
		Delete(&MessageModel{}).Error
}
