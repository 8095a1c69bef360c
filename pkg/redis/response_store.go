package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const pendingMarker = "processing"

// ErrPending means another request holds the key.
var ErrPending = errors.New("request already in progress")

// StoredResponse is a replayable HTTP response.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// ResponseStore keeps Idempotency-Key responses in Redis.
type ResponseStore struct {
	prefix    string
	lock      time.Duration
	retention time.Duration
}

var (
	setResponseValue   = Set
	getResponseValue   = Get
	setNXResponseValue = SetNX
	delResponseValue   = Del
)

// NewResponseStore creates a store; lock bounds how long a claim survives a
// crashed request, retention how long a finished response is replayed.
func NewResponseStore(prefix string, lock, retention time.Duration) *ResponseStore {
	if prefix == "" {
		prefix = "idempotency"
	}
	return &ResponseStore{prefix: prefix, lock: lock, retention: retention}
}

func (s *ResponseStore) key(scope, key string) string {
	return s.prefix + ":" + scope + ":" + key
}

// Lookup returns a finished response, ErrPending while one is in flight,
// or (nil, nil) when the key is unused.
func (s *ResponseStore) Lookup(ctx context.Context, scope, key string) (*StoredResponse, error) {
	raw, err := getResponseValue(ctx, s.key(scope, key))
	if IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if raw == pendingMarker {
		return nil, ErrPending
	}
	var resp StoredResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Claim marks the key as in flight. It fails with ErrPending if it is taken.
func (s *ResponseStore) Claim(ctx context.Context, scope, key string) error {
	ok, err := setNXResponseValue(ctx, s.key(scope, key), pendingMarker, s.lock)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPending
	}
	return nil
}

// Save stores the final response for replay.
func (s *ResponseStore) Save(ctx context.Context, scope, key string, resp *StoredResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return setResponseValue(ctx, s.key(scope, key), string(data), s.retention)
}

// Release drops a claim so the request can be retried.
func (s *ResponseStore) Release(ctx context.Context, scope, key string) error {
	return delResponseValue(ctx, s.key(scope, key))
}
