package server

import (
	"errors"
	"time"

	"github.com/kataras/iris/v12"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/auth"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/config"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/website"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/infra/mq"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/infra/redis"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/middleware"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/provider/paypal"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/repository/mysql"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/service"
)

// RegisterRoutes 注册所有前台 HTTP 路由
func RegisterRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储与服务
	userRepo := mysql.NewUserRepository(db)
	websiteRepo := mysql.NewWebsiteRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	favoriteRepo := mysql.NewFavoriteRepository(db)

	userSvc := service.NewUserService(userRepo, &cfg.JWT)
	websiteSvc := service.NewWebsiteService(websiteRepo)
	favoriteSvc := service.NewFavoriteService(favoriteRepo, websiteRepo)
	accountSvc := service.NewAccountService(db, userRepo)
	orderSvc := service.NewOrderService(orderRepo)

	// 支付服务商客户端显式构造后注入，凭证不走包级全局
	providerClient := paypal.New(&cfg.PayPal, redisClient)
	publisher := mq.NewPublisher(mqConn)
	paymentSvc := service.NewPaymentService(orderRepo, websiteRepo, providerClient, publisher)

	tokenCache := auth.NewTokenCache(redisClient, time.Duration(cfg.JWT.TokenCacheTTLSeconds)*time.Second)

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"code": 0,
			"msg":  "ok",
		})
	})

	// 用户注册/登录
	api.Post("/register", func(ctx iris.Context) {
		var req struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		u, err := userSvc.Register(ctx.Request().Context(), req.Name, req.Email, req.Password, req.Role)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"id": u.ID, "email": u.Email, "role": u.Role}})
	})

	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, err := userSvc.Login(ctx.Request().Context(), req.Email, req.Password)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token}})
	})

	// 需要登录的接口
	authAPI := api.Party("/", AuthMiddleware(&cfg.JWT, tokenCache))

	// ---------------- 站点目录 ----------------

	// 目录搜索（筛选条件走 JSON body，与前端保持一致）
	authAPI.Post("/websites/search", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		if err := userSvc.CheckActive(ctx.Request().Context(), userID); err != nil {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": err.Error()})
			return
		}
		var f website.SearchFilter
		if err := ctx.ReadJSON(&f); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		list, err := websiteSvc.Search(ctx.Request().Context(), &f)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Get("/websites/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		w, err := websiteSvc.Get(ctx.Request().Context(), id)
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "站点不存在"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": w})
	})

	// 站长的刊例管理
	authAPI.Get("/my/websites", func(ctx iris.Context) {
		ownerID := ctx.Values().GetInt64Default("user_id", 0)
		status := ctx.URLParam("status")
		list, err := websiteSvc.ListMine(ctx.Request().Context(), ownerID, status)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Post("/websites", func(ctx iris.Context) {
		var w website.Website
		if err := ctx.ReadJSON(&w); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		w.OwnerID = ctx.Values().GetInt64Default("user_id", 0)
		created, err := websiteSvc.Submit(ctx.Request().Context(), &w)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.StatusCode(201)
		ctx.JSON(iris.Map{"code": 0, "data": created})
	})

	authAPI.Put("/websites/{id:int64}", func(ctx iris.Context) {
		var w website.Website
		if err := ctx.ReadJSON(&w); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		w.ID, _ = ctx.Params().GetInt64("id")
		ownerID := ctx.Values().GetInt64Default("user_id", 0)
		updated, err := websiteSvc.Update(ctx.Request().Context(), ownerID, &w)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": updated})
	})

	authAPI.Delete("/websites/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		ownerID := ctx.Values().GetInt64Default("user_id", 0)
		if err := websiteSvc.Delete(ctx.Request().Context(), ownerID, id); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// ---------------- 收藏 ----------------

	authAPI.Post("/favorites/{websiteID:int64}", func(ctx iris.Context) {
		websiteID, _ := ctx.Params().GetInt64("websiteID")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		if err := favoriteSvc.Add(ctx.Request().Context(), userID, websiteID); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "favorited"})
	})

	authAPI.Delete("/favorites/{websiteID:int64}", func(ctx iris.Context) {
		websiteID, _ := ctx.Params().GetInt64("websiteID")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		if err := favoriteSvc.Remove(ctx.Request().Context(), userID, websiteID); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "removed"})
	})

	authAPI.Get("/favorites", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		list, err := favoriteSvc.List(ctx.Request().Context(), userID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// ---------------- 账户 ----------------

	authAPI.Get("/account", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		acc, err := accountSvc.GetSummary(ctx.Request().Context(), userID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": acc})
	})

	authAPI.Get("/account/transactions", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		limit := ctx.URLParamIntDefault("limit", 20)
		list, err := accountSvc.ListTransactions(ctx.Request().Context(), userID, limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Post("/account/withdraw", func(ctx iris.Context) {
		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		userID := ctx.Values().GetInt64Default("user_id", 0)
		acc, err := accountSvc.Withdraw(ctx.Request().Context(), userID, req.Amount)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": acc})
	})

	// ---------------- 订单与支付 ----------------

	authAPI.Get("/orders", func(ctx iris.Context) {
		buyerID := ctx.Values().GetInt64Default("user_id", 0)
		list, err := orderSvc.ListByBuyer(ctx.Request().Context(), buyerID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 支付链路单独限流，服务商接口有配额
	payAPI := authAPI.Party("/", middleware.PaymentRateLimit())

	payAPI.Post("/orders", func(ctx iris.Context) {
		var req struct {
			Items []service.CheckoutItem `json:"items"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		buyerID := ctx.Values().GetInt64Default("user_id", 0)
		o, err := paymentSvc.CreateOrder(ctx.Request().Context(), buyerID, req.Items)
		if err != nil {
			writePaymentError(ctx, err)
			return
		}
		ctx.StatusCode(201)
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	payAPI.Post("/orders/{id:int64}/provider-order", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		res, err := paymentSvc.InitiateProviderOrder(ctx.Request().Context(), id)
		if err != nil {
			writePaymentError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": res})
	})

	payAPI.Get("/orders/{id:int64}/approval-status", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		res, err := paymentSvc.VerifyProviderApproval(ctx.Request().Context(), id)
		if err != nil {
			writePaymentError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": res})
	})

	payAPI.Post("/orders/{id:int64}/capture", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		res, err := paymentSvc.CaptureOrder(ctx.Request().Context(), id)
		if err != nil {
			writePaymentError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": res})
	})

	payAPI.Get("/orders/{id:int64}/status", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		res, err := paymentSvc.CheckStatus(ctx.Request().Context(), id)
		if err != nil {
			writePaymentError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": res})
	})

	// 支付回跳后的回调：按服务商订单号做 验证+捕获
	payAPI.Post("/payments/capture", func(ctx iris.Context) {
		var req struct {
			ProviderOrderRef string `json:"provider_order_ref"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		res, err := paymentSvc.CaptureByProviderRef(ctx.Request().Context(), req.ProviderOrderRef)
		if err != nil {
			writePaymentError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": res})
	})
}

// AuthMiddleware JWT 鉴权，解析结果经 Redis 缓存
func AuthMiddleware(jwtCfg *config.JWTConfig, cache *auth.TokenCache) iris.Handler {
	return func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}

		claims, hit, err := cache.Get(ctx.Request().Context(), token)
		if err != nil || !hit {
			claims, err = auth.ParseToken(jwtCfg, token)
			if err != nil {
				ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
				return
			}
			_ = cache.Set(ctx.Request().Context(), token, claims)
		}

		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("email", claims.Email)
		ctx.Values().Set("role", claims.Role)
		ctx.Next()
	}
}

// writePaymentError 按错误分类映射 HTTP 状态码：
// 参数错误 400、订单不存在 404、未批准 409、服务商失败 502（带原始响应）。
func writePaymentError(ctx iris.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound):
		ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": err.Error()})
	case errors.Is(err, service.ErrOrderNotApproved):
		ctx.StopWithJSON(409, iris.Map{"code": 409, "msg": err.Error()})
	case service.IsProviderError(err):
		var pe *paypal.Error
		errors.As(err, &pe)
		ctx.StopWithJSON(502, iris.Map{
			"code":     502,
			"msg":      "支付服务商调用失败，可稍后重试",
			"provider": iris.Map{"op": pe.Op, "status": pe.StatusCode, "body": pe.Body},
		})
	default:
		ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
	}
}
