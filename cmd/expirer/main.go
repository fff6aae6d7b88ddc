// The expirer sweeps sessions whose expiry has passed and marks them
// EXPIRED. The aggregate makes the transition idempotent, so rescanning
// a session another instance already handled is harmless; the Redis
// dedup key just keeps event noise down.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-checkout-orders.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders.git/internal/config"
	kafkax "github.com/ariefcatur/go-checkout-orders.git/internal/kafka"
	"github.com/ariefcatur/go-checkout-orders.git/internal/metrics"
	"github.com/ariefcatur/go-checkout-orders.git/internal/postgres"
	"github.com/ariefcatur/go-checkout-orders.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicSessionEvents, 1024)
	prod.Start(ctx)

	svc := &checkout.Service{
		Repo:        &checkout.Repo{Q: db},
		Redis:       rdb,
		Producer:    prod,
		ServiceName: cfg.ServiceName + "-expirer",
	}

	m := metrics.New("expirer")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(getenv("METRICS_ADDR", ":9091"), mux); err != nil {
			log.Printf("metrics server: %v", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(cfg.ExpirerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep(ctx, svc, rdb, m, cfg.ExpirerBatch)
			}
		}
	}()
	log.Printf("expirer started: interval=%s batch=%d", cfg.ExpirerInterval, cfg.ExpirerBatch)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down expirer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}

func sweep(ctx context.Context, svc *checkout.Service, rdb *redis.Client, m *metrics.Metrics, batch int) {
	now := time.Now().UTC()
	ids, err := svc.Repo.FindExpiredIDs(ctx, now, batch)
	if err != nil {
		log.Printf("find expired: %v", err)
		return
	}
	for _, id := range ids {
		dkey := fmt.Sprintf(redisx.KeyDedup, "expirer", id)
		if seen, _ := redisx.Exists(ctx, rdb, dkey); seen {
			continue
		}
		var transitioned bool
		if _, err := svc.Apply(ctx, id, "", func(s *checkout.Session) error {
			before := s.Status
			if err := s.ExpireIfDue(); err != nil {
				return err
			}
			transitioned = s.Status != before
			return nil
		}); err != nil {
			// Conflict just means the customer beat us to a transition;
			// the next sweep re-evaluates the session.
			log.Printf("expire %s: %v", id, err)
			continue
		}
		// extended or completed since the scan: nothing to count or dedup
		if !transitioned {
			continue
		}
		_ = rdb.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
		m.SessionsExpired.Inc()
	}
	if len(ids) > 0 {
		log.Printf("expired sweep: %d candidates", len(ids))
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
