package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/domain"
)

type gormConnectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &gormConnectionRepository{db: db}
}

// ReplaceAll swaps the cached directory wholesale, matching the load
// semantics of the directory fetch: no incremental merge.
func (r *gormConnectionRepository) ReplaceAll(ctx context.Context, conns []domain.Connection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&ConnectionModel{}).Error; err != nil {
			return err
		}
		for i := range conns {
			if err := tx.Create(ConnectionDomainToModel(&conns[i])).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *gormConnectionRepository) GetAll(ctx context.Context) ([]domain.Connection, error) {
	var models []ConnectionModel
	err := r.db.WithContext(ctx).
		Order("unread_count DESC, last_message_time DESC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	conns := make([]domain.Connection, len(models))
	for i := range models {
		conns[i] = *ConnectionModelToDomain(&models[i])
	}
	return conns, nil
}

func (r *gormConnectionRepository) GetByRoom(ctx context.Context, roomName string) (*domain.Connection, error) {
	var model ConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "room_name = ?", roomName).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return ConnectionModelToDomain(&model), nil
}

func (r *gormConnectionRepository) UpdateLastMessage(ctx context.Context, roomName, text string, timestamp time.Time) error {
	return r.db.WithContext(ctx).
		Model(&ConnectionModel{}).
		Where("room_name = ?", roomName).
		Updates(map[string]interface{}{
			"last_message_text": text,
			"last_message_time": timestamp,
		}).Error
}

func (r *gormConnectionRepository) UpdateUnreadCount(ctx context.Context, roomName string, count int) error {
	return r.db.WithContext(ctx).
		Model(&ConnectionModel{}).
		Where("room_name = ?", roomName).
		Update("unread_count", count).Error
}

func (r *gormConnectionRepository) IncrementUnreadCount(ctx context.Context, roomName string) error {
	return r.db.WithContext(ctx).
		Model(&ConnectionModel{}).
		Where("room_name = ?", roomName).
		UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error
}
