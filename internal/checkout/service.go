package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/ariefcatur/go-checkout-orders.git/internal/kafka"
	"github.com/ariefcatur/go-checkout-orders.git/internal/redisx"
)

// Service sequences session commands: load, mutate through the aggregate,
// save with the version check, then publish the drained events and
// refresh the status cache. Events are only published after the commit
// succeeded, so a failed save publishes nothing.
type Service struct {
	Repo        *Repo
	Redis       *redis.Client
	Producer    *kafkax.Producer // TopicSessionEvents
	ServiceName string
	SessionTTL  time.Duration // 0 = aggregate default
}

type StartCommand struct {
	CartID   string
	Email    string
	Subtotal decimal.Decimal
	Currency string
	UserID   string
	TenantID string
	TraceID  string
}

func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Session, error) {
	sess, err := New(cmd.CartID, cmd.Email, cmd.Subtotal, cmd.Currency, cmd.UserID, cmd.TenantID)
	if err != nil {
		return nil, err
	}
	if s.SessionTTL > 0 {
		sess.ExtendExpiration(int(s.SessionTTL.Minutes()))
	}
	if err := s.Repo.Insert(ctx, s.Repo.Q, sess); err != nil {
		return nil, err
	}
	s.publish(sess.ID, cmd.TraceID, sess.PullEvents())
	s.cacheStatus(ctx, sess)
	return sess, nil
}

// Apply runs one mutation against the session identified by id. The
// mutation's business error passes through untouched; a version mismatch
// on save surfaces as Conflict and the caller decides whether to retry.
func (s *Service) Apply(ctx context.Context, id, traceID string, mutate func(*Session) error) (*Session, error) {
	sess, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(sess); err != nil {
		return nil, err
	}
	if err := s.Repo.Update(ctx, s.Repo.Q, sess); err != nil {
		return nil, err
	}
	s.publish(sess.ID, traceID, sess.PullEvents())
	s.cacheStatus(ctx, sess)
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.Repo.Get(ctx, id)
}

// PublishFor publishes a session's drained events and refreshes its
// status cache, for orchestrations that committed the session elsewhere
// (checkout completion shares the order transaction).
func (s *Service) PublishFor(ctx context.Context, sess *Session, traceID string) {
	s.publish(sess.ID, traceID, sess.PullEvents())
	s.cacheStatus(ctx, sess)
}

func (s *Service) publish(sessionID, traceID string, events []Event) {
	if s.Producer == nil {
		return
	}
	for _, e := range events {
		env := kafkax.NewEnvelope(s.ServiceName, e.EventType(), traceID, sessionID, e)
		s.Producer.Publish(kafkax.PartitionKey(sessionID), kafkax.MustMarshal(env),
			kafkago.Header{Key: "x-event-type", Value: []byte(e.EventType())},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
}

func (s *Service) cacheStatus(ctx context.Context, sess *Session) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyCheckoutStatus, sess.ID)
	val := fmt.Sprintf(`{"status":%q}`, string(sess.Status))
	// cache only; DB stays the source of truth
	_ = s.Redis.Set(ctx, key, val, redisx.TTLStatusCache).Err()
}
