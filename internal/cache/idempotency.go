// Package cache holds short-lived shared state kept outside the database.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// idem:order:{buyer_id}:{key} -> pending marker, then order uuid
	KeyIdemOrderCreate = "idem:order:%d:%s"

	// Pending marks a key whose request is still running.
	Pending = "__pending__"
)

var TTLIdempotency = 24 * time.Hour

// Idempotency remembers which client request produced which order.
type Idempotency interface {
	// Reserve claims key. If it is already claimed it returns the stored
	// value (Pending or an order uuid) and reserved=false.
	Reserve(ctx context.Context, key string) (existing string, reserved bool, err error)
	// Complete stores value (see OrderRecord) under a reserved key.
	Complete(ctx context.Context, key, value string) error
	// Release drops a reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}

func OrderKey(buyerID int64, clientKey string) string {
	return fmt.Sprintf(KeyIdemOrderCreate, buyerID, clientKey)
}

// OrderRecord is the value stored under a completed order key: the order
// uuid and a fingerprint of the request that created it.
func OrderRecord(orderUUID, fingerprint string) string {
	return orderUUID + "|" + fingerprint
}

// ParseOrderRecord splits a stored value. Values without a fingerprint
// return an empty one.
func ParseOrderRecord(v string) (orderUUID, fingerprint string) {
	orderUUID, fingerprint, _ = strings.Cut(v, "|")
	return orderUUID, fingerprint
}

type RedisIdempotency struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func NewRedisIdempotency(rdb *redis.Client) *RedisIdempotency {
	return &RedisIdempotency{rdb: rdb, ttl: TTLIdempotency}
}

func (r *RedisIdempotency) Reserve(ctx context.Context, key string) (string, bool, error) {
	ok, err := r.rdb.SetNX(ctx, key, Pending, r.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return r.Reserve(ctx, key)
	}
	if err != nil {
		return "", false, err
	}
	return v, false, nil
}

func (r *RedisIdempotency) Complete(ctx context.Context, key, value string) error {
	return r.rdb.Set(ctx, key, value, r.ttl).Err()
}

func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// memSweepEvery bounds how often Reserve scans for expired entries.
const memSweepEvery = time.Minute

// Memory is a single-process Idempotency used when Redis is not configured.
// Expired entries are swept from Reserve at most once per memSweepEvery.
type Memory struct {
	mu        sync.Mutex
	entries   map[string]memEntry
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type memEntry struct {
	value   string
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]memEntry{}, ttl: TTLIdempotency, now: time.Now}
}

func (m *Memory) Reserve(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.Sub(m.lastSweep) >= memSweepEvery {
		m.sweep(now)
	}
	if e, ok := m.entries[key]; ok && now.Before(e.expires) {
		return e.value, false, nil
	}
	m.entries[key] = memEntry{value: Pending, expires: now.Add(m.ttl)}
	return "", true, nil
}

func (m *Memory) Complete(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{value: value, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) sweep(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.lastSweep = now
}
