package user

import (
	"context"
	"time"
)

// 用户角色
const (
	RoleAdvertiser = "advertiser" // 广告主（买家）
	RolePublisher  = "publisher"  // 站长（卖家）
	RoleAdmin      = "admin"
)

// User 用户模型
type User struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"size:64;not null"`
	Email     string    `gorm:"uniqueIndex;size:128;not null"`
	Password  string    `gorm:"size:255;not null"` // 已加密密码
	Salt      string    `gorm:"size:64"`
	Role      string    `gorm:"size:16;index;not null"`
	Verified  bool      `gorm:"not null"` // 邮箱是否已验证
	Active    bool      `gorm:"not null"` // false 表示被封禁
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository 用户仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	ListAll(ctx context.Context) ([]*User, error)
}
