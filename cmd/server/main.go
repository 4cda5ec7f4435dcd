package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/otabek-dev/mahalla-admin/internal/app"
	"github.com/otabek-dev/mahalla-admin/internal/config"
	"github.com/otabek-dev/mahalla-admin/internal/db"
	"github.com/otabek-dev/mahalla-admin/internal/jobs"
	"github.com/otabek-dev/mahalla-admin/internal/logging"
	"github.com/otabek-dev/mahalla-admin/internal/observability"
	"github.com/otabek-dev/mahalla-admin/internal/sms"
)

func main() {
	// Загрузка переменных окружения
	if err := godotenv.Load(); err != nil {
		log.Println("Не удалось загрузить .env файл, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer lg.Closer()

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, "mahalla-admin")
	if err != nil {
		lg.Base.Warn("Sentry не инициализирован", zap.Error(err))
	}
	defer flush()

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		lg.Base.Fatal("подключение к БД", zap.Error(err))
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		lg.Base.Fatal("миграция", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Seed(ctx, database, cfg.AdminLogin, cfg.AdminPassword); err != nil {
		lg.Base.Fatal("первичные данные", zap.Error(err))
	}

	app.StartHTTP(ctx, app.Options{
		Addr:         cfg.HTTPAddr,
		DatabasePath: cfg.DatabasePath,
		BackupDir:    cfg.BackupDir,
	}, database, lg.Base)

	smsSvc := sms.NewService(database, lg.Base, sms.DemoGateway{})

	runner := jobs.New(ctx)
	runner.Every(cfg.BackupInterval, "db_backup", func(context.Context) error {
		_, err := db.Backup(cfg.DatabasePath, cfg.BackupDir)
		return err
	})
	runner.Every(cfg.DispatchInterval, "sms_dispatch", func(jctx context.Context) error {
		_, err := smsSvc.DispatchDue(jctx)
		return err
	})

	lg.Base.Info("сервис запущен",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("db", cfg.DatabasePath),
	)

	<-ctx.Done()
	lg.Base.Info("остановка по сигналу")
}
