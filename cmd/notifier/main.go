// The notifier tails the checkout event stream, keeps the Redis status
// cache warm for completed sessions, and logs completions for the ops
// dashboard. Events are deduped by event id.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-checkout-orders.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders.git/internal/config"
	kafkax "github.com/ariefcatur/go-checkout-orders.git/internal/kafka"
	"github.com/ariefcatur/go-checkout-orders.git/internal/redisx"
)

type notifier struct {
	rdb *redis.Client
}

func (n *notifier) handle(ctx context.Context, m kafkago.Message) error {
	var env kafkax.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return err
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	if seen, _ := redisx.Exists(ctx, n.rdb, dkey); seen {
		return nil
	}
	_ = n.rdb.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case checkout.EventCheckoutCompleted:
		p, err := kafkax.UnwrapPayload[checkout.CheckoutCompleted](env.Payload)
		if err != nil {
			return err
		}
		skey := fmt.Sprintf(redisx.KeyCheckoutStatus, p.SessionID)
		_ = n.rdb.Set(ctx, skey, `{"status":"COMPLETED"}`, redisx.TTLStatusCache).Err()
		log.Printf("checkout completed: session=%s order=%s total=%s", p.SessionID, p.OrderNumber, p.GrandTotal)
	case checkout.EventCheckoutExpired:
		p, err := kafkax.UnwrapPayload[checkout.CheckoutExpired](env.Payload)
		if err != nil {
			return err
		}
		skey := fmt.Sprintf(redisx.KeyCheckoutStatus, p.SessionID)
		_ = n.rdb.Set(ctx, skey, `{"status":"EXPIRED"}`, redisx.TTLStatusCache).Err()
	}
	return nil
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	group := getenv("NOTIFIER_GROUP", "checkout-notifier")
	workers := atoi(os.Getenv("NOTIFIER_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, checkout.TopicSessionEvents, workers)

	n := &notifier{rdb: rdb}
	go func() {
		log.Printf("notifier started: group=%s topic=%s workers=%d", group, checkout.TopicSessionEvents, workers)
		if err := cons.Start(ctx, n.handle); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down notifier...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil || i <= 0 {
		return def
	}
	return i
}
