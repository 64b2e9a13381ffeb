package favorite

import (
	"context"
	"time"
)

// Favorite 广告主收藏的站点
type Favorite struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"uniqueIndex:idx_user_website;not null"`
	WebsiteID int64 `gorm:"uniqueIndex:idx_user_website;not null"`
	CreatedAt time.Time
}

// Repository 收藏仓储接口
type Repository interface {
	Add(ctx context.Context, f *Favorite) error
	Remove(ctx context.Context, userID, websiteID int64) error
	ListByUser(ctx context.Context, userID int64) ([]*Favorite, error)
	Exists(ctx context.Context, userID, websiteID int64) (bool, error)
}
