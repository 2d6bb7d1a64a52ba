// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for chat messages.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no routing or notification rules live here, only persistence and
// query composition. Message lists are ordered deterministically by
// (timestamp ASC, id ASC).
//
// Error semantics:
//   - When a message is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChatMessages inserts msgs in one statement. An empty slice is a no-op.
func CreateChatMessages(ctx context.Context, db *gorm.DB, msgs []domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&msgs).Error
}

// GetChatMessage fetches a message by id.
func GetChatMessage(ctx context.Context, db *gorm.DB, id string) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListChatBatch returns the copies stored by one send, in message order.
func ListChatBatch(ctx context.Context, db *gorm.DB, batchID string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListChatMessages returns the full message log across every channel.
func ListChatMessages(ctx context.Context, db *gorm.DB) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).Order("timestamp ASC, id ASC").Find(&out).Error
	return out, err
}

// ListChannelMessages returns the messages of a single channel.
func ListChannelMessages(ctx context.Context, db *gorm.DB, channel string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("chat_channel = ?", channel).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListChannelMessagesByPrefix returns the messages of every channel whose key
// starts with prefix.
func ListChannelMessagesByPrefix(ctx context.Context, db *gorm.DB, prefix string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where(`chat_channel LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}

// MarkChannelRead flags as read every unread message on channel that was not
// sent by readerID, returning how many rows changed.
func MarkChannelRead(ctx context.Context, db *gorm.DB, channel, readerID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("chat_channel = ? AND sender_id <> ? AND read = ?", channel, readerID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

// ChannelHasParticipant reports whether userID sent or received any message
// on channel.
func ChannelHasParticipant(ctx context.Context, db *gorm.DB, channel, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("chat_channel = ? AND (sender_id = ? OR recipient_id = ?)", channel, userID, userID).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}
