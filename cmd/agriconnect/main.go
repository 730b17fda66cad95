package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agriconnect/internal/cache"
	"agriconnect/internal/config"
	"agriconnect/internal/events"
	"agriconnect/internal/http/handlers"
	"agriconnect/internal/repos"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			defer f.Close()
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN, cfg.SeedDemo)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Events: Kafka when brokers are configured, the log otherwise
	var pub events.Publisher = events.LogPublisher{}
	var kafkaPub *events.KafkaPublisher
	kafkaCtx, stopKafka := context.WithCancel(context.Background())
	defer stopKafka()
	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		kafkaPub = events.NewKafkaPublisher(brokers, cfg.KafkaTopic, 1024)
		kafkaPub.Start(kafkaCtx)
		pub = kafkaPub
		log.Printf("[events] kafka brokers=%v topic=%s", brokers, cfg.KafkaTopic)
	}

	// Idempotency keys: Redis when reachable, in-process otherwise
	var idem cache.Idempotency = cache.NewMemory()
	if cfg.RedisAddr != "" {
		rdb := cache.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Printf("[warn] redis %s unreachable: %v; idempotency keys stay in-process", cfg.RedisAddr, err)
		} else {
			idem = cache.NewRedisIdempotency(rdb)
			log.Printf("[cache] redis %s", cfg.RedisAddr)
		}
		cancel()
	}

	deps := handlers.NewDeps(db, cfg, pub, idem)
	app := handlers.NewApp(cfg, deps)

	go func() {
		<-ctx.Done()
		log.Println("[shutdown] draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("[warn] shutdown: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("[error] listen: %v", err)
	}
	stop()
	// flush events of requests that finished during shutdown
	stopKafka()
	if kafkaPub != nil {
		kafkaPub.WaitClosed()
	}
}
