package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chatbot-checkout/internal/domain"
	"chatbot-checkout/internal/domain/model"
	"chatbot-checkout/internal/domain/ports/repository"
	"chatbot-checkout/internal/infra/metrics"

	"github.com/go-redis/redis/v8"
)

const (
	sessionKeyPrefix = "payment_session:"
	maxTxRetries     = 10
)

var _ repository.SessionStore = (*SessionStore)(nil)

// SessionStore shares sessions between processes. Each session is a JSON
// value whose key TTL tracks ExpiresAt, so redis drops dead sessions itself.
type SessionStore struct {
	cli *redis.Client
	now func() time.Time
}

func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{cli: c.cli, now: time.Now}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

// storedSession is the JSON shape persisted in redis.
type storedSession struct {
	ID                string    `json:"id"`
	CustomerRef       string    `json:"customer_ref"`
	PlanID            string    `json:"plan_id"`
	PlanCategory      string    `json:"plan_category"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	CampaignID        string    `json:"campaign_id,omitempty"`
	ProviderPaymentID string    `json:"provider_payment_id,omitempty"`
	OriginalPrice     int64     `json:"original_price,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func encodeSession(s *model.Session) ([]byte, error) {
	return json.Marshal(storedSession{
		ID:                s.ID,
		CustomerRef:       s.CustomerRef,
		PlanID:            s.PlanID,
		PlanCategory:      string(s.PlanCategory),
		Amount:            s.Amount,
		Currency:          s.Currency,
		Status:            string(s.Status),
		CampaignID:        s.CampaignID,
		ProviderPaymentID: s.ProviderPaymentID,
		OriginalPrice:     s.OriginalPrice,
		CreatedAt:         s.CreatedAt,
		ExpiresAt:         s.ExpiresAt,
		UpdatedAt:         s.UpdatedAt,
	})
}

func decodeSession(data []byte) (*model.Session, error) {
	var w storedSession
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &model.Session{
		ID:                w.ID,
		CustomerRef:       w.CustomerRef,
		PlanID:            w.PlanID,
		PlanCategory:      model.PlanCategory(w.PlanCategory),
		Amount:            w.Amount,
		Currency:          w.Currency,
		Status:            model.SessionStatus(w.Status),
		CampaignID:        w.CampaignID,
		ProviderPaymentID: w.ProviderPaymentID,
		OriginalPrice:     w.OriginalPrice,
		CreatedAt:         w.CreatedAt,
		ExpiresAt:         w.ExpiresAt,
		UpdatedAt:         w.UpdatedAt,
	}, nil
}

// keyTTL keeps already-expired sessions around briefly so reads can still
// report them as expired rather than missing.
func (s *SessionStore) keyTTL(sess *model.Session) time.Duration {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

func (s *SessionStore) Put(ctx context.Context, sess *model.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("%w: session id required", domain.ErrInvalidArgument)
	}
	data, err := encodeSession(sess)
	if err != nil {
		return err
	}
	return s.cli.Set(ctx, sessionKey(sess.ID), data, s.keyTTL(sess)).Err()
}

func (s *SessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.cli.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(data)
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.cli.Del(ctx, sessionKey(id)).Err()
}

// Update runs fn inside a WATCH/MULTI transaction and retries when another
// writer touched the key in between.
func (s *SessionStore) Update(ctx context.Context, id string, fn func(*model.Session) error) (*model.Session, error) {
	key := sessionKey(id)
	var (
		result *model.Session
		fnErr  error
	)
	txf := func(tx *redis.Tx) error {
		result, fnErr = nil, nil
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		cur, err := decodeSession(data)
		if err != nil {
			return err
		}
		next := cur.Clone()
		if err := fn(next); err != nil {
			result, fnErr = cur, err
			return nil
		}
		encoded, err := encodeSession(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.keyTTL(next))
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.cli.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			metrics.IncSessionStoreConflict()
			continue
		}
		if err != nil {
			return nil, err
		}
		if fnErr != nil {
			return result, fnErr
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: session %s update contended", domain.ErrOperationFailed, id)
}

func (s *SessionStore) All(ctx context.Context) ([]*model.Session, error) {
	var out []*model.Session
	iter := s.cli.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.cli.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sess, err := decodeSession(data)
		if err != nil {
			continue
		}
		out = append(out, sess)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
