// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// DefaultRedisPrefix namespaces ledger keys.
const DefaultRedisPrefix = "paper-digest:ledger:"

// RedisStore keeps one key per candidate. SETNX gives insert-if-absent
// semantics across processes sharing the server.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to addr, which may be host:port or a redis:// URL.
func NewRedisStore(addr, prefix string) (*RedisStore, error) {
	var opts *redis.Options
	if u, err := redis.ParseURL(addr); err == nil {
		opts = u
	} else {
		opts = &redis.Options{Addr: addr}
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: redis.NewClient(opts), prefix: prefix}, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

// Get returns the entry for id.
func (s *RedisStore) Get(ctx context.Context, id string) (types.LedgerEntry, bool, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.LedgerEntry{}, false, nil
	}
	if err != nil {
		return types.LedgerEntry{}, false, err
	}
	var e types.LedgerEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return types.LedgerEntry{}, false, fmt.Errorf("decoding ledger entry %s: %w", id, err)
	}
	return e, true, nil
}

// Insert stores entry unless the key exists.
func (s *RedisStore) Insert(ctx context.Context, entry types.LedgerEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return &WriteError{CandidateID: entry.CandidateID, Err: err}
	}
	ok, err := s.client.SetNX(ctx, s.key(entry.CandidateID), raw, 0).Result()
	if err != nil {
		return &WriteError{CandidateID: entry.CandidateID, Err: err}
	}
	if !ok {
		dup := &DuplicateEntryError{CandidateID: entry.CandidateID}
		if existing, found, gerr := s.Get(ctx, entry.CandidateID); gerr == nil && found {
			dup.Existing = &existing
		}
		return dup
	}
	return nil
}

// List scans every ledger key and returns the entries ordered by
// ProcessedAt.
func (s *RedisStore) List(ctx context.Context) ([]types.LedgerEntry, error) {
	var entries []types.LedgerEntry
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		e, ok, err := s.Get(ctx, iter.Val()[len(s.prefix):])
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, e)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ProcessedAt.Equal(entries[j].ProcessedAt) {
			return entries[i].CandidateID < entries[j].CandidateID
		}
		return entries[i].ProcessedAt.Before(entries[j].ProcessedAt)
	})
	return entries, nil
}
