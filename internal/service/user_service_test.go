package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/auth"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/config"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/user"
)

type fakeUserRepo struct {
	seq   int64
	users map[int64]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*user.User)}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *u
	return &c, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	r.seq++
	u.ID = r.seq
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *user.User) error {
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *fakeUserRepo) ListAll(_ context.Context) ([]*user.User, error) {
	var out []*user.User
	for _, u := range r.users {
		c := *u
		out = append(out, &c)
	}
	return out, nil
}

func newUserService() (*UserService, *fakeUserRepo, *config.JWTConfig) {
	repo := newFakeUserRepo()
	jwtCfg := &config.JWTConfig{Secret: "test-secret"}
	return NewUserService(repo, jwtCfg), repo, jwtCfg
}

func TestRegisterAndLogin(t *testing.T) {
	svc, repo, jwtCfg := newUserService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "张三", "buyer@example.com", "s3cret", user.RoleAdvertiser)
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.NotEqual(t, "s3cret", u.Password) // 密码不能明文落库
	assert.True(t, u.Active)

	token, err := svc.Login(ctx, "buyer@example.com", "s3cret")
	require.NoError(t, err)

	claims, err := auth.ParseToken(jwtCfg, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, user.RoleAdvertiser, claims.Role)

	// 密码错误
	_, err = svc.Login(ctx, "buyer@example.com", "wrong")
	assert.Error(t, err)

	// 封禁后拒绝登录
	stored := repo.users[u.ID]
	stored.Active = false
	_, err = svc.Login(ctx, "buyer@example.com", "s3cret")
	assert.Error(t, err)
	assert.Error(t, svc.CheckActive(ctx, u.ID))
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "a@b.com", "pwd", user.RoleAdvertiser)
	assert.Error(t, err)

	// 不允许自助注册管理员
	_, err = svc.Register(ctx, "李四", "admin@b.com", "pwd", user.RoleAdmin)
	assert.Error(t, err)
}
