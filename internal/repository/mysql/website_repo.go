package mysql

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/website"
)

type websiteRepo struct {
	db *gorm.DB
}

// NewWebsiteRepository 创建站点仓储
func NewWebsiteRepository(db *gorm.DB) website.Repository {
	return &websiteRepo{db: db}
}

func (r *websiteRepo) GetByID(ctx context.Context, id int64) (*website.Website, error) {
	var w website.Website
	if err := r.db.WithContext(ctx).First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// Search 目录搜索，只返回已审核通过的站点
func (r *websiteRepo) Search(ctx context.Context, f *website.SearchFilter) ([]*website.Website, error) {
	query := r.db.WithContext(ctx).Where("status = ?", website.StatusApproved)

	if f != nil {
		if f.Query != "" {
			// 与前端一致：去掉协议与 www 前缀后按域名/媒体名模糊匹配
			q := strings.ToLower(f.Query)
			q = strings.TrimPrefix(q, "https://")
			q = strings.TrimPrefix(q, "http://")
			q = strings.TrimPrefix(q, "www.")
			q = strings.TrimSuffix(q, "/")
			like := "%" + q + "%"
			query = query.Where("web_domain LIKE ? OR LOWER(media_name) LIKE ?", like, like)
		}
		if f.MinPrice > 0 {
			query = query.Where("price >= ?", f.MinPrice)
		}
		if f.MaxPrice > 0 {
			query = query.Where("price <= ?", f.MaxPrice)
		}
		if f.DAMax > 0 {
			query = query.Where("da BETWEEN ? AND ?", f.DAMin, f.DAMax)
		}
		if f.AScoreMax > 0 {
			query = query.Where("a_score BETWEEN ? AND ?", f.AScoreMin, f.AScoreMax)
		}
		if f.MediaType != "" {
			query = query.Where("media_type = ?", f.MediaType)
		}
		if len(f.Categories) > 0 {
			query = query.Where("category IN ?", f.Categories)
		}
		if f.Language != "" {
			query = query.Where("language = ?", f.Language)
		}
		for _, topic := range f.SensitiveTopics {
			query = query.Where("sensitive_topics LIKE ?", "%"+topic+"%")
		}
		if f.GoogleNews != nil {
			query = query.Where("google_news = ?", *f.GoogleNews)
		}
	}

	var list []*website.Website
	if err := query.Order("highlight DESC, id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *websiteRepo) ListByOwner(ctx context.Context, ownerID int64, status string) ([]*website.Website, error) {
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var list []*website.Website
	if err := query.Order("id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *websiteRepo) ListByStatus(ctx context.Context, status string) ([]*website.Website, error) {
	var list []*website.Website
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *websiteRepo) Create(ctx context.Context, w *website.Website) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *websiteRepo) Update(ctx context.Context, w *website.Website) error {
	return r.db.WithContext(ctx).Save(w).Error
}

func (r *websiteRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&website.Website{}, id).Error
}
