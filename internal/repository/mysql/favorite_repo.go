package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/favorite"
)

type favoriteRepo struct {
	db *gorm.DB
}

// NewFavoriteRepository 创建收藏仓储
func NewFavoriteRepository(db *gorm.DB) favorite.Repository {
	return &favoriteRepo{db: db}
}

// Add 重复收藏直接忽略
func (r *favoriteRepo) Add(ctx context.Context, f *favorite.Favorite) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "website_id"}},
		DoNothing: true,
	}).Create(f).Error
}

func (r *favoriteRepo) Remove(ctx context.Context, userID, websiteID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND website_id = ?", userID, websiteID).
		Delete(&favorite.Favorite{}).Error
}

func (r *favoriteRepo) ListByUser(ctx context.Context, userID int64) ([]*favorite.Favorite, error) {
	var list []*favorite.Favorite
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *favoriteRepo) Exists(ctx context.Context, userID, websiteID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&favorite.Favorite{}).
		Where("user_id = ? AND website_id = ?", userID, websiteID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
