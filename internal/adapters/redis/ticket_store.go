package redis

// Package redis provides Redis-based adapters for the caseboard system.

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campusworks/caseboard-ui-api/internal/ports"
)

// TicketStore is a Redis-backed one-time anti-forgery ticket store.
// Tickets are bound to a single login transaction: Issue writes the token
// with a TTL, Consume redeems it atomically, and a redeemed or expired token
// can never be redeemed again.
type TicketStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ ports.TicketStore = (*TicketStore)(nil)

// DefaultTicketTTL bounds how long a login transaction may take between the
// relay issuing a ticket and the browser submitting it.
const DefaultTicketTTL = 10 * time.Minute

// NewTicketStore creates a Redis-backed ticket store.
func NewTicketStore(client redis.UniversalClient, ttl time.Duration) *TicketStore {
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &TicketStore{
		client: client,
		prefix: "csrf_ticket:",
		ttl:    ttl,
	}
}

// Issue stores the ticket token with the configured TTL.
func (s *TicketStore) Issue(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("ticket token cannot be empty")
	}
	return s.client.Set(ctx, s.prefix+token, "1", s.ttl).Err()
}

// Consume atomically redeems the ticket. GETDEL makes the redemption
// exactly-once even under concurrent submissions of the same ticket.
func (s *TicketStore) Consume(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	_, err := s.client.GetDel(ctx, s.prefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
