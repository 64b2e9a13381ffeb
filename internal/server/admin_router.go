package server

import (
	"time"

	"github.com/kataras/iris/v12"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/auth"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/config"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/user"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/infra/redis"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/repository/mysql"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/service"
)

// RegisterAdminRoutes 注册管理端路由（独立端口，仅 admin 角色可用）
func RegisterAdminRoutes(app *iris.Application, cfg *config.Config) {
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)

	userRepo := mysql.NewUserRepository(db)
	websiteRepo := mysql.NewWebsiteRepository(db)
	orderRepo := mysql.NewOrderRepository(db)

	websiteSvc := service.NewWebsiteService(websiteRepo)
	accountSvc := service.NewAccountService(db, userRepo)
	orderSvc := service.NewOrderService(orderRepo)

	tokenCache := auth.NewTokenCache(redisClient, time.Duration(cfg.JWT.TokenCacheTTLSeconds)*time.Second)

	admin := app.Party("/admin", AuthMiddleware(&cfg.JWT, tokenCache), func(ctx iris.Context) {
		if ctx.Values().GetStringDefault("role", "") != user.RoleAdmin {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "需要管理员权限"})
			return
		}
		ctx.Next()
	})

	// ---------------- 用户与账户 ----------------

	admin.Get("/users", func(ctx iris.Context) {
		list, err := userRepo.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	admin.Get("/accounts", func(ctx iris.Context) {
		list, err := accountSvc.ListAccounts(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	admin.Post("/accounts/{userID:int64}/deposit", func(ctx iris.Context) {
		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		userID, _ := ctx.Params().GetInt64("userID")
		acc, err := accountSvc.Deposit(ctx.Request().Context(), userID, req.Amount)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": acc})
	})

	// ---------------- 刊例审核 ----------------

	admin.Get("/websites/pending", func(ctx iris.Context) {
		list, err := websiteSvc.ListPending(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	admin.Post("/websites/{id:int64}/review", func(ctx iris.Context) {
		var req struct {
			Approve bool `json:"approve"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		id, _ := ctx.Params().GetInt64("id")
		w, err := websiteSvc.Review(ctx.Request().Context(), id, req.Approve)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": w})
	})

	admin.Put("/websites/{id:int64}/discount", func(ctx iris.Context) {
		var req struct {
			Discount int `json:"discount"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		id, _ := ctx.Params().GetInt64("id")
		w, err := websiteSvc.SetDiscount(ctx.Request().Context(), id, req.Discount)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": w})
	})

	admin.Put("/websites/{id:int64}/highlight", func(ctx iris.Context) {
		var req struct {
			Highlight bool `json:"highlight"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		id, _ := ctx.Params().GetInt64("id")
		w, err := websiteSvc.SetHighlight(ctx.Request().Context(), id, req.Highlight)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": w})
	})

	// ---------------- 订单与监控 ----------------

	admin.Get("/orders/recent", func(ctx iris.Context) {
		limit := ctx.URLParamIntDefault("limit", 20)
		list, err := orderSvc.ListRecent(ctx.Request().Context(), limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	admin.Get("/stats", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "data": service.GetMonitor().Snapshot()})
	})
}
