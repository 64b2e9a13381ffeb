package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/favorite"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/website"
)

// FavoriteService 广告主收藏
type FavoriteService struct {
	repo        favorite.Repository
	websiteRepo website.Repository
}

// NewFavoriteService 创建收藏服务
func NewFavoriteService(repo favorite.Repository, websiteRepo website.Repository) *FavoriteService {
	return &FavoriteService{repo: repo, websiteRepo: websiteRepo}
}

// Add 收藏站点，重复收藏不报错
func (s *FavoriteService) Add(ctx context.Context, userID, websiteID int64) error {
	if _, err := s.websiteRepo.GetByID(ctx, websiteID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("站点不存在")
		}
		return err
	}
	return s.repo.Add(ctx, &favorite.Favorite{UserID: userID, WebsiteID: websiteID})
}

// Remove 取消收藏
func (s *FavoriteService) Remove(ctx context.Context, userID, websiteID int64) error {
	return s.repo.Remove(ctx, userID, websiteID)
}

// List 收藏的站点详情列表
func (s *FavoriteService) List(ctx context.Context, userID int64) ([]*website.Website, error) {
	favs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*website.Website, 0, len(favs))
	for _, f := range favs {
		w, err := s.websiteRepo.GetByID(ctx, f.WebsiteID)
		if err != nil {
			// 站点已被删除，跳过
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}
