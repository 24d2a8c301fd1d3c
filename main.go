package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"matchsim-service/config"
	"matchsim-service/database"
	"matchsim-service/models"
	"matchsim-service/services"
	"matchsim-service/telemetry"
	"matchsim-service/web"
)

func main() {
	log.Println("Starting Match Simulation Service...")

	// 加载配置
	cfg := config.Load()

	// 连接数据库
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 运行数据库迁移
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Println("Database connected and migrated")

	// 创建域通知 Broker
	broker := services.NewInMemoryBroker()
	defer broker.Close()

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	// AMQP 通知转发（可选）
	if cfg.AMQPUrl != "" {
		notifier := services.NewAMQPNotifier(cfg.AMQPUrl, cfg.AMQPExchange)
		if err := notifier.Connect(); err != nil {
			log.Printf("AMQP notifier unavailable: %v", err)
		} else {
			defer notifier.Close()
			go func() {
				if err := notifier.Run(ctx, broker); err != nil {
					log.Printf("AMQP notifier stopped: %v", err)
				}
			}()
			log.Println("AMQP notifier started")
		}
	}

	// MQTT 比分遥测（可选）
	if cfg.MQTTBroker != "" {
		publisher := telemetry.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTUsername, cfg.MQTTPassword)
		if err := publisher.Connect(); err != nil {
			log.Printf("MQTT publisher unavailable: %v", err)
		} else {
			defer publisher.Disconnect()
			go func() {
				if err := publisher.Run(ctx, broker); err != nil {
					log.Printf("MQTT publisher stopped: %v", err)
				}
			}()
			log.Println("MQTT publisher started")
		}
	}

	// 组装模拟核心
	clock := services.NewMatchClock(cfg.HalfTimeBreak, cfg.MinAdditional, cfg.MaxAdditional)
	generator := services.NewEventGenerator(cfg.BaseEventProbability)
	attrs := services.NewStaticAttributeProvider()
	store := services.NewSessionStore(db)

	// Hub 先建（管理器依赖广播接口），再接上管理器的公开原语
	var manager *services.SessionManager
	hub := web.NewHub(
		func(matchID int64) (models.SessionSnapshot, error) {
			s, err := manager.GetSession(matchID)
			if err != nil {
				return models.SessionSnapshot{}, err
			}
			return s.Snapshot(), nil
		},
		func(matchID int64) (int64, error) { return manager.JoinSpectator(matchID) },
		func(matchID int64) (int64, error) { return manager.LeaveSpectator(matchID) },
	)
	go hub.Run()

	manager = services.NewSessionManager(clock, generator, attrs, store, hub, broker, cfg.MinuteDuration)
	defer manager.Stop()

	// 启动恢复：续跑崩溃前未完赛的会话
	if err := manager.Recover(); err != nil {
		log.Printf("Startup recovery failed: %v", err)
	}

	// 僵死会话监督器
	monitor := services.NewSessionMonitor(manager, cfg.StaleAfter, cfg.MonitorInterval)
	go monitor.Run(ctx)
	log.Printf("Session monitor started (interval %v, stale after %v)", cfg.MonitorInterval, cfg.StaleAfter)

	// 启动Web服务器
	server := web.NewServer(cfg, manager, hub)
	go func() {
		if err := server.Start(); err != nil {
			log.Printf("Web server stopped: %v", err)
		}
	}()
	log.Printf("Web server started on port %s", cfg.Port)

	log.Println("Service is running. Press Ctrl+C to stop.")

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down service...")

	cancelBackground()
	server.Stop()
	manager.Stop()

	log.Println("Service stopped")
}
