package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-checkout-orders.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders.git/internal/config"
	"github.com/ariefcatur/go-checkout-orders.git/internal/httpx"
	"github.com/ariefcatur/go-checkout-orders.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-checkout-orders.git/internal/kafka"
	"github.com/ariefcatur/go-checkout-orders.git/internal/metrics"
	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
	"github.com/ariefcatur/go-checkout-orders.git/internal/postgres"
	"github.com/ariefcatur/go-checkout-orders.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers: session events + order created
	sessProd := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicSessionEvents, 1024)
	sessProd.Start(ctx)
	orderProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	orderProd.Start(ctx)
	cancelProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	cancelProd.Start(ctx)

	m := metrics.New("api")

	checkoutSvc := &checkout.Service{
		Repo:        &checkout.Repo{Q: db},
		Redis:       rdb,
		Producer:    sessProd,
		ServiceName: cfg.ServiceName,
		SessionTTL:  cfg.SessionTTL,
	}
	orderSvc := &orders.Service{
		DB:             db,
		Repo:           &orders.Repo{Q: db},
		Sessions:       checkoutSvc.Repo,
		Checkout:       checkoutSvc,
		Numbers:        &orders.PGNumberGenerator{DB: db},
		Coordinator:    &inventory.Coordinator{Runner: &inventory.PGRunner{DB: db}},
		Redis:          rdb,
		Producer:       orderProd,
		CancelProducer: cancelProd,
		ServiceName:    cfg.ServiceName,
	}

	router := httpx.NewRouter(m)
	ch := &httpx.CheckoutHandler{Checkout: checkoutSvc, Orders: orderSvc, Metrics: m}
	ch.Register(router)
	oh := &httpx.OrdersHandler{Orders: orderSvc, Metrics: m}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	sessProd.Close()
	orderProd.Close()
	cancelProd.Close()
	cancel() // stop producer loops
	sessProd.WaitClosed()
	orderProd.WaitClosed()
	cancelProd.WaitClosed()
}
