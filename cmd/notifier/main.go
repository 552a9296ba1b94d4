package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/config"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/infra/mq"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.RabbitURL == "" {
		log.Fatal("[notify] RABBIT_URL is required")
	}

	queue := os.Getenv("NOTIFY_QUEUE")
	if queue == "" {
		queue = "servicecenter.notifications"
	}

	var cons *mq.Consumer
	for {
		cons, err = mq.NewConsumer(cfg.RabbitURL, cfg.MQExchange, queue, notify.Bindings, 16)
		if err != nil {
			log.Printf("[notify] connect failed: %v; retry in 2s", err)
			time.Sleep(2 * time.Second)
			continue
		}
		break
	}
	defer cons.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	msgs, err := cons.Deliveries(ctx)
	if err != nil {
		log.Fatalf("[notify] consume: %v", err)
	}

	log.Printf("[notify] started. queue=%s exchange=%s bindings=%v", queue, cfg.MQExchange, notify.Bindings)

	if err := notify.NewWorker(notify.NewConsole()).Run(ctx, msgs); err != nil {
		log.Printf("[notify] run error: %v", err)
	}
}
