package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"NetBank-Chain/internal/api"
	"NetBank-Chain/internal/config"
	"NetBank-Chain/internal/event"
	"NetBank-Chain/internal/identity"
	"NetBank-Chain/internal/intent"
	"NetBank-Chain/internal/observability/metrics"
	"NetBank-Chain/internal/orchestrator"
	"NetBank-Chain/internal/repository"
	"NetBank-Chain/internal/session"
	"NetBank-Chain/internal/transfer"
	"NetBank-Chain/pkg/logger"
)

// main 是网银助手守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("netbankd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("NETBANK_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "netbank.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logger); err != nil {
		return err
	}
	defer logger.Sync()

	repo, ledger, err := createRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	sessions, err := createSessionStore(cfg)
	if err != nil {
		return err
	}
	defer sessions.Close()

	events, err := createPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := events.Close(); err != nil {
			log.Printf("关闭事件发布器失败: %v", err)
		}
	}()

	resolver, planner, err := createIntent(cfg)
	if err != nil {
		return err
	}

	domainRouter, err := orchestrator.NewDefaultRouter(repo)
	if err != nil {
		return err
	}

	core, err := orchestrator.New(orchestrator.Deps{
		Sessions: sessions,
		Gate:     identity.NewGate(repo),
		Resolver: resolver,
		Planner:  planner,
		Router:   domainRouter,
		Saga:     transfer.NewSaga(repo, ledger, events),
	})
	if err != nil {
		return err
	}

	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("指标服务异常退出: %v", err)
			}
		}()
	}

	server := api.NewServer(cfg.Server.Address, core, nil)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func createRepository(ctx context.Context, cfg *config.Config) (repository.Repository, repository.Ledger, error) {
	switch cfg.Repository.Driver {
	case "", "file":
		if err := os.MkdirAll(cfg.Repository.DataDir, 0o755); err != nil {
			return nil, nil, err
		}
		repo, err := repository.NewFileRepository(cfg.Repository.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	case "mysql":
		repo, err := repository.NewMySQLRepository(ctx, repository.MySQLConfig{DSN: cfg.Repository.DSN})
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	default:
		return nil, nil, fmt.Errorf("未知的仓库驱动: %s", cfg.Repository.Driver)
	}
}

func createSessionStore(cfg *config.Config) (session.Store, error) {
	scratchTTL := time.Duration(cfg.Saga.ScratchTTLMinutes) * time.Minute
	switch cfg.Sessions.Driver {
	case "", "memory":
		return session.NewMemoryStore(session.WithScratchTTL(scratchTTL)), nil
	case "redis":
		return session.NewRedisStore(session.RedisStoreConfig{
			Address:    cfg.Sessions.Redis.Address,
			Password:   cfg.Sessions.Redis.Password,
			DB:         cfg.Sessions.Redis.DB,
			KeyPrefix:  cfg.Sessions.Redis.KeyPrefix,
			SessionTTL: time.Duration(cfg.Sessions.SessionTTLMinutes) * time.Minute,
			ScratchTTL: scratchTTL,
		})
	default:
		return nil, fmt.Errorf("未知的会话存储驱动: %s", cfg.Sessions.Driver)
	}
}

func createPublisher(cfg *config.Config) (event.Publisher, error) {
	switch cfg.Events.Driver {
	case "", "memory":
		return event.NewMemoryPublisher(1024), nil
	case "rabbitmq":
		return event.NewRabbitMQPublisher(event.RabbitMQConfig{
			URL:     cfg.Events.URL,
			Queue:   cfg.Events.Queue,
			Durable: cfg.Events.Durable,
		})
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Events.Driver)
	}
}

func createIntent(cfg *config.Config) (intent.Resolver, intent.Planner, error) {
	var rules *intent.RuleSet
	if cfg.Intent.RulesPath != "" {
		loaded, err := intent.LoadRules(cfg.Intent.RulesPath)
		if err != nil {
			return nil, nil, err
		}
		rules = loaded
	}
	resolver := intent.NewRuleResolver(rules)
	return resolver, intent.NewRulePlanner(resolver), nil
}
