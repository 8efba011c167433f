package main

import (
	"go.uber.org/zap"

	"s3transfer/api"
	"s3transfer/pkg/config"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	server := api.NewServer(api.ServerConfig{
		ToolPath:      cfg.ToolPath,
		StagingDir:    cfg.StagingDir,
		ToolTimeout:   cfg.ToolTimeout,
		DefaultRegion: cfg.DefaultRegion,
	}, logger)
	router := api.SetupRouter(server)

	logger.Info("transfer service starting",
		zap.String("port", cfg.Port),
		zap.String("tool_path", cfg.ToolPath),
		zap.String("staging_dir", cfg.StagingDir))

	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
