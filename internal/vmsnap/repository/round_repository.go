package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/jimyag/vmsnap/internal/vmsnap/repository/model"
)

// RoundRepository 轮次历史仓库接口
type RoundRepository interface {
	Create(ctx context.Context, round *model.Round) error
	GetByID(ctx context.Context, id string) (*model.Round, error)
	ListRecent(ctx context.Context, limit int) ([]*model.Round, error)
}

type roundRepository struct {
	db *gorm.DB
}

// NewRoundRepository 创建轮次历史仓库
func NewRoundRepository(db *gorm.DB) RoundRepository {
	return &roundRepository{db: db}
}

// Create 写入一条轮次记录
func (r *roundRepository) Create(ctx context.Context, round *model.Round) error {
	return r.db.WithContext(ctx).Create(round).Error
}

// GetByID 根据 ID 获取轮次记录
func (r *roundRepository) GetByID(ctx context.Context, id string) (*model.Round, error) {
	var round model.Round
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&round).Error; err != nil {
		return nil, err
	}
	return &round, nil
}

// ListRecent 按开始时间倒序列出最近的轮次记录
func (r *roundRepository) ListRecent(ctx context.Context, limit int) ([]*model.Round, error) {
	if limit <= 0 {
		limit = 20
	}
	var rounds []*model.Round
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&rounds).Error; err != nil {
		return nil, err
	}
	return rounds, nil
}
