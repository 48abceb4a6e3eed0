package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTicketNotFound is returned when a login ticket is unknown, expired or already used.
var ErrTicketNotFound = errors.New("login ticket not found")

const ticketPrefix = "auth:ticket:"

// LoginTicketRepository stores one-time tickets proving a login just succeeded.
type LoginTicketRepository struct {
	client *redis.Client
}

// NewLoginTicketRepository constructs the repository.
func NewLoginTicketRepository(client *redis.Client) *LoginTicketRepository {
	return &LoginTicketRepository{client: client}
}

// Create stores ticket for userID. Existing tickets are never overwritten.
func (r *LoginTicketRepository) Create(ctx context.Context, ticket, userID string, ttl time.Duration) error {
	ok, err := r.client.SetNX(ctx, ticketPrefix+ticket, userID, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx ticket: %w", err)
	}
	if !ok {
		return fmt.Errorf("login ticket collision")
	}
	return nil
}

// Consume atomically reads and deletes ticket, returning the bound user id.
func (r *LoginTicketRepository) Consume(ctx context.Context, ticket string) (string, error) {
	userID, err := r.client.GetDel(ctx, ticketPrefix+ticket).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTicketNotFound
		}
		return "", fmt.Errorf("redis getdel ticket: %w", err)
	}
	return userID, nil
}
