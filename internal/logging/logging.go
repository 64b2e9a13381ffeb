package logging

import (
	"log"

	"go.uber.org/zap"
)

// Init 初始化全局 zap Logger，之后各处通过 zap.L() 使用
func Init(debug bool) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
}
