package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Zenkai92/Modelify/internal/projects/domain"
)

const confirmKeyPrefix = "transition:confirm:" // one-shot tokens: transition:confirm:{token}

var ErrConfirmationExpired = errors.New("confirmation token expired or unknown")

// PendingTransition is an admin transition that was proposed but not yet
// committed. The token is single-use and bound to the exact move it
// confirmed, so a click on a stale dialog can never advance a different
// project or a different edge.
type PendingTransition struct {
	Token     string        `json:"token"`
	ProjectID string        `json:"project_id"`
	From      domain.Status `json:"from"`
	To        domain.Status `json:"to"`
}

// ConfirmStore keeps pending transitions in Redis with a short TTL.
type ConfirmStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewConfirmStore(client *redis.Client, ttl time.Duration) *ConfirmStore {
	return &ConfirmStore{client: client, ttl: ttl}
}

func (s *ConfirmStore) Issue(ctx context.Context, projectID string, from, to domain.Status) (*PendingTransition, error) {
	pt := &PendingTransition{
		Token:     uuid.New().String(),
		ProjectID: projectID,
		From:      from,
		To:        to,
	}

	data, err := json.Marshal(pt)
	if err != nil {
		return nil, fmt.Errorf("marshal pending transition: %w", err)
	}

	if err := s.client.Set(ctx, confirmKeyPrefix+pt.Token, data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store pending transition: %w", err)
	}
	return pt, nil
}

// Take consumes a token. It is removed atomically so a double confirm finds
// nothing the second time.
func (s *ConfirmStore) Take(ctx context.Context, token string) (*PendingTransition, error) {
	data, err := s.client.GetDel(ctx, confirmKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrConfirmationExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load pending transition: %w", err)
	}

	var pt PendingTransition
	if err := json.Unmarshal(data, &pt); err != nil {
		return nil, fmt.Errorf("unmarshal pending transition: %w", err)
	}
	return &pt, nil
}
