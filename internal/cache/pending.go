package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"greenmart/api/internal/models"
)

const (
	pendingCodePrefix = "pending:code:"
	pendingUserPrefix = "pending:user:"
)

// PendingStore keeps registration payloads and their verification codes in
// redis. Each payload is stored under its code; a second key maps the user id
// back to the code so resend can find it. The two writes are independent: a
// crash in between leaves a code without a reverse pointer, which only blocks
// resend until the TTL reclaims it.
type PendingStore struct {
	client *redis.Client
}

func NewPendingStore(client *redis.Client) *PendingStore {
	return &PendingStore{client: client}
}

func (s *PendingStore) SaveCode(ctx context.Context, code string, pending models.PendingRegistration, ttl time.Duration) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending registration: %w", err)
	}
	if err := s.client.Set(ctx, pendingCodePrefix+code, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", pendingCodePrefix+code, err)
	}
	return nil
}

func (s *PendingStore) SaveUserCode(ctx context.Context, userID string, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, pendingUserPrefix+userID, code, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", pendingUserPrefix+userID, err)
	}
	return nil
}

// GetByCode returns nil without error when the code is unknown or expired.
func (s *PendingStore) GetByCode(ctx context.Context, code string) (*models.PendingRegistration, error) {
	payload, err := s.client.Get(ctx, pendingCodePrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get %s: %w", pendingCodePrefix+code, err)
	}

	var pending models.PendingRegistration
	if err := json.Unmarshal(payload, &pending); err != nil {
		return nil, fmt.Errorf("unmarshal pending registration: %w", err)
	}
	return &pending, nil
}

// GetUserCode returns "" without error when no code is mapped for the user.
func (s *PendingStore) GetUserCode(ctx context.Context, userID string) (string, error) {
	code, err := s.client.Get(ctx, pendingUserPrefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("cache get %s: %w", pendingUserPrefix+userID, err)
	}
	return code, nil
}

func (s *PendingStore) DeleteCode(ctx context.Context, code string) error {
	return s.client.Del(ctx, pendingCodePrefix+code).Err()
}

func (s *PendingStore) DeleteUserCode(ctx context.Context, userID string) error {
	return s.client.Del(ctx, pendingUserPrefix+userID).Err()
}
