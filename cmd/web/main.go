package main

import (
	"log"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/config"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/logging"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/server"
)

func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logging.Init(false)
	defer func() { _ = zap.L().Sync() }()
	zap.L().Info("log init success")

	app := iris.New()
	server.RegisterRoutes(app, cfg)

	addr := cfg.Server.Addr()
	zap.L().Info("web server listening", zap.String("addr", addr))
	if err := app.Run(iris.Addr(addr)); err != nil {
		log.Fatalf("failed to run web server: %v", err)
	}
}
