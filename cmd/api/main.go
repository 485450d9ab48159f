package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/jeovahfialho/t212-digrin/internal/api"
	"github.com/jeovahfialho/t212-digrin/internal/app"
	"github.com/jeovahfialho/t212-digrin/internal/config"
	pkglogger "github.com/jeovahfialho/t212-digrin/pkg/logger"
)

// @title T212 Digrin Pipeline API
// @version 1.0
// @description API para gerar e converter relatórios da Trading 212 para o Digrin

// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
func main() {
	cfg := config.Load()

	if err := pkglogger.Init(cfg.LogLevel, cfg.Environment == "development"); err != nil {
		log.Fatal("Erro ao inicializar logger:", err)
	}
	defer pkglogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		pkglogger.Fatal("Erro ao inicializar dependências", zap.Error(err))
	}
	defer a.Close()

	opts := []api.HandlerOption{api.WithBaseContext(ctx)}
	for name, check := range a.Checks() {
		opts = append(opts, api.WithHealthCheck(name, check))
	}
	if a.Runs != nil {
		opts = append(opts, api.WithRunLister(a.Runs))
	}
	handler := api.NewHandler(a.Pipeline, opts...)

	server := fiber.New(fiber.Config{
		ServerHeader:          "T212-Digrin",
		DisableStartupMessage: false,
		AppName:               "T212 Digrin Pipeline v1.0.0",
		ReadTimeout:           cfg.APIReadTimeout,
		WriteTimeout:          cfg.APIWriteTimeout,
		IdleTimeout:           120 * time.Second,
		ProxyHeader:           "X-Forwarded-For",
		BodyLimit:             10 * 1024 * 1024, // 10MB
	})

	server.Use(recover.New())
	server.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	server.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	api.SetupRoutes(server, handler, cfg.APIToken)

	go func() {
		<-ctx.Done()

		pkglogger.Info("Encerrando servidor...")
		if err := server.Shutdown(); err != nil {
			pkglogger.Error("Erro ao encerrar servidor", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	pkglogger.Info("Iniciando servidor", zap.String("addr", addr))

	if err := server.Listen(addr); err != nil {
		pkglogger.Fatal("Erro no servidor", zap.Error(err))
	}

	// Execuções em andamento observam ctx e terminam com erro de cancelamento.
	handler.Wait()
}
