package mysql

import (
	"log"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/config"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/account"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/favorite"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/order"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/user"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/website"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init 初始化全局 GORM 实例并自动迁移表结构
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}

		if err = db.AutoMigrate(
			&user.User{},
			&website.Website{},
			&order.Order{},
			&order.Item{},
			&account.Account{},
			&account.Transaction{},
			&favorite.Favorite{},
		); err != nil {
			log.Fatalf("auto migrate failed: %v", err)
		}
	})
	return db
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}
