package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/auth"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/config"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/user"
)

type UserService struct {
	repo user.Repository
	jwt  *config.JWTConfig
}

func NewUserService(repo user.Repository, jwt *config.JWTConfig) *UserService {
	return &UserService{repo: repo, jwt: jwt}
}

func hashPassword(raw, salt string) string {
	h := sha256.Sum256([]byte(raw + salt))
	return hex.EncodeToString(h[:])
}

// Register 注册，角色只接受 advertiser / publisher
func (s *UserService) Register(ctx context.Context, name, email, password, role string) (*user.User, error) {
	if name == "" || email == "" || password == "" {
		return nil, errors.New("姓名、邮箱、密码均不能为空")
	}
	if role != user.RoleAdvertiser && role != user.RolePublisher {
		return nil, errors.New("角色不合法")
	}
	u := &user.User{
		Name:   name,
		Email:  email,
		Role:   role,
		Active: true,
		Salt:   "linkbuilding", // 简化实现，真实业务请使用随机盐
	}
	u.Password = hashPassword(password, u.Salt)
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login 登录并返回 JWT
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if !u.Active {
		return "", errors.New("账号已被封禁")
	}
	if hashPassword(password, u.Salt) != u.Password {
		return "", errors.New("密码错误")
	}
	return auth.GenerateToken(s.jwt, u.ID, u.Email, u.Role)
}

// CheckActive 校验用户存在且未被封禁，站点搜索等接口的前置检查
func (s *UserService) CheckActive(ctx context.Context, userID int64) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.Active {
		return errors.New("账号已被封禁")
	}
	return nil
}
