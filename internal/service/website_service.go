package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/website"
)

// WebsiteService 刊例管理与目录搜索
type WebsiteService struct {
	repo website.Repository
}

// NewWebsiteService 创建站点服务
func NewWebsiteService(repo website.Repository) *WebsiteService {
	return &WebsiteService{repo: repo}
}

func (s *WebsiteService) Get(ctx context.Context, id int64) (*website.Website, error) {
	return s.repo.GetByID(ctx, id)
}

// Search 目录搜索（只含已审核通过的站点）
func (s *WebsiteService) Search(ctx context.Context, f *website.SearchFilter) ([]*website.Website, error) {
	return s.repo.Search(ctx, f)
}

// ListMine 站长名下的刊例，status 为空时返回全部
func (s *WebsiteService) ListMine(ctx context.Context, ownerID int64, status string) ([]*website.Website, error) {
	return s.repo.ListByOwner(ctx, ownerID, status)
}

// Submit 站长提交新刊例，进入待审核状态
func (s *WebsiteService) Submit(ctx context.Context, w *website.Website) (*website.Website, error) {
	if w.OwnerID <= 0 || w.MediaName == "" || w.WebDomain == "" {
		return nil, errors.New("媒体名与域名不能为空")
	}
	if w.Price <= 0 || w.Commission <= 0 {
		return nil, errors.New("价格与抽成必须大于 0")
	}
	w.ID = 0
	w.Status = website.StatusPending
	w.Highlight = false
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Update 站长更新刊例，改动后回到待审核状态
func (s *WebsiteService) Update(ctx context.Context, ownerID int64, w *website.Website) (*website.Website, error) {
	existing, err := s.repo.GetByID(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, errors.New("只能修改自己的刊例")
	}
	w.OwnerID = existing.OwnerID
	w.Status = website.StatusPending
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Delete 站长删除刊例
func (s *WebsiteService) Delete(ctx context.Context, ownerID, id int64) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.OwnerID != ownerID {
		return errors.New("只能删除自己的刊例")
	}
	return s.repo.Delete(ctx, id)
}

// ListPending 待审核刊例（管理端）
func (s *WebsiteService) ListPending(ctx context.Context) ([]*website.Website, error) {
	return s.repo.ListByStatus(ctx, website.StatusPending)
}

// Review 审核刊例（管理端），approve=false 时置为 rejected
func (s *WebsiteService) Review(ctx context.Context, id int64, approve bool) (*website.Website, error) {
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if approve {
		w.Status = website.StatusApproved
	} else {
		w.Status = website.StatusRejected
	}
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// SetDiscount 设置折扣百分比（管理端）
func (s *WebsiteService) SetDiscount(ctx context.Context, id int64, discount int) (*website.Website, error) {
	if discount < 0 || discount >= 100 {
		return nil, fmt.Errorf("折扣需在 0-99 之间，当前 %d", discount)
	}
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Discount = discount
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// SetHighlight 设置目录页高亮（管理端）
func (s *WebsiteService) SetHighlight(ctx context.Context, id int64, highlight bool) (*website.Website, error) {
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Highlight = highlight
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}
