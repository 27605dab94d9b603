// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// redisKeyPrefix namespaces every engine key in the shared Redis.
	redisKeyPrefix = "dayend_engine:"
	// redisUsersKey is the set of all user IDs that have documents.
	redisUsersKey = redisKeyPrefix + "users"
)

// RedisStore implements Store on Redis. Each (user, collection) pair is a
// hash whose fields are document IDs and whose values are JSON payloads.
// Write batches commit through a single MULTI/EXEC pipeline.
type RedisStore struct {
	client redis.UniversalClient
	cfg    RedisStoreConfig
}

type RedisStoreConfig struct{}

// NewRedisStore creates a Redis-backed document store.
func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig) *RedisStore {
	return &RedisStore{client: client, cfg: cfg}
}

func collectionKey(userID, collection string) string {
	return fmt.Sprintf("%suser:%s:%s", redisKeyPrefix, userID, collection)
}

func encodeDoc(doc interface{}) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

// Get fetches one document by ID.
func (s *RedisStore) Get(ctx context.Context, userID, collection, docID string) (Document, error) {
	data, err := s.client.HGet(ctx, collectionKey(userID, collection), docID).Result()
	if err == redis.Nil {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get %s/%s for user %s: %w", collection, docID, userID, err)
	}
	return Document{ID: docID, Data: []byte(data)}, nil
}

// Set writes one document and registers the user.
func (s *RedisStore) Set(ctx context.Context, userID, collection, docID string, doc interface{}) error {
	data, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, collectionKey(userID, collection), docID, data)
	pipe.SAdd(ctx, redisUsersKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set %s/%s for user %s: %w", collection, docID, userID, err)
	}
	return nil
}

// Add writes a document under a generated ID.
func (s *RedisStore) Add(ctx context.Context, userID, collection string, doc interface{}) (string, error) {
	docID := uuid.NewString()
	if err := s.Set(ctx, userID, collection, docID, doc); err != nil {
		return "", err
	}
	return docID, nil
}

// Delete removes one document. Missing documents are not an error.
func (s *RedisStore) Delete(ctx context.Context, userID, collection, docID string) error {
	if err := s.client.HDel(ctx, collectionKey(userID, collection), docID).Err(); err != nil {
		return fmt.Errorf("failed to delete %s/%s for user %s: %w", collection, docID, userID, err)
	}
	return nil
}

// Query scans one collection and applies filters, ordering and limit.
func (s *RedisStore) Query(ctx context.Context, userID, collection string, q Query) ([]Document, error) {
	for _, f := range q.Filters {
		if f.Op == OpIn {
			if n := inValueCount(f.Value); n > MaxInValues {
				return nil, fmt.Errorf("in filter on %s has %d values, maximum is %d", f.Field, n, MaxInValues)
			}
		}
	}

	raw, err := s.client.HGetAll(ctx, collectionKey(userID, collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s for user %s: %w", collection, userID, err)
	}

	type decoded struct {
		doc    Document
		fields map[string]interface{}
	}
	matched := make([]decoded, 0, len(raw))
	for id, data := range raw {
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			logrus.Warnf("skipping undecodable document %s/%s for user %s: %v", collection, id, userID, err)
			continue
		}
		ok := true
		for _, f := range q.Filters {
			if !matchFilter(fields, f) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, decoded{doc: Document{ID: id, Data: []byte(data)}, fields: fields})
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			less := compareValues(matched[i].fields[q.OrderBy], matched[j].fields[q.OrderBy]) < 0
			if q.Descending {
				return !less
			}
			return less
		})
	} else {
		// Deterministic order for callers that do not sort.
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].doc.ID < matched[j].doc.ID })
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	docs := make([]Document, len(matched))
	for i, m := range matched {
		docs[i] = m.doc
	}
	return docs, nil
}

// ListUsers enumerates all registered user IDs in stable order.
func (s *RedisStore) ListUsers(ctx context.Context) ([]string, error) {
	users, err := s.client.SMembers(ctx, redisUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sort.Strings(users)
	return users, nil
}

// NewBatch starts an atomic write batch.
func (s *RedisStore) NewBatch() Batch {
	return &redisBatch{store: s}
}

type batchOp struct {
	del    bool
	userID string
	key    string
	docID  string
	data   []byte
	encErr error
}

type redisBatch struct {
	store *RedisStore
	ops   []batchOp
}

func (b *redisBatch) Set(userID, collection, docID string, doc interface{}) {
	data, err := encodeDoc(doc)
	b.ops = append(b.ops, batchOp{
		userID: userID,
		key:    collectionKey(userID, collection),
		docID:  docID,
		data:   data,
		encErr: err,
	})
}

func (b *redisBatch) Delete(userID, collection, docID string) {
	b.ops = append(b.ops, batchOp{
		del:    true,
		userID: userID,
		key:    collectionKey(userID, collection),
		docID:  docID,
	})
}

func (b *redisBatch) Len() int { return len(b.ops) }

func (b *redisBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	if len(b.ops) > MaxBatchOps {
		return fmt.Errorf("%w: %d operations", ErrBatchTooLarge, len(b.ops))
	}
	for _, op := range b.ops {
		if op.encErr != nil {
			return op.encErr
		}
	}

	pipe := b.store.client.TxPipeline()
	for _, op := range b.ops {
		if op.del {
			pipe.HDel(ctx, op.key, op.docID)
			continue
		}
		pipe.HSet(ctx, op.key, op.docID, op.data)
		pipe.SAdd(ctx, redisUsersKey, op.userID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to commit batch of %d operations: %w", len(b.ops), err)
	}
	b.ops = b.ops[:0]
	return nil
}

func inValueCount(v interface{}) int {
	switch vv := v.(type) {
	case []string:
		return len(vv)
	case []interface{}:
		return len(vv)
	default:
		return 1
	}
}

func matchFilter(fields map[string]interface{}, f Filter) bool {
	got, present := fields[f.Field]
	if !present || got == nil {
		return false
	}

	if f.Op == OpIn {
		switch vv := f.Value.(type) {
		case []string:
			for _, candidate := range vv {
				if compareValues(got, candidate) == 0 {
					return true
				}
			}
		case []interface{}:
			for _, candidate := range vv {
				if compareValues(got, candidate) == 0 {
					return true
				}
			}
		}
		return false
	}

	cmp := compareValues(got, f.Value)
	switch f.Op {
	case OpEqual:
		return cmp == 0
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEqual:
		return cmp >= 0
	default:
		return false
	}
}

// compareValues orders two JSON-decoded values. Numbers compare
// numerically, RFC 3339 strings chronologically, booleans false<true,
// everything else as strings.
func compareValues(a, b interface{}) int {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if at, aok := toTime(a); aok {
		if bt, bok := toTime(b); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func toFloat(v interface{}) (float64, bool) {
	switch vv := v.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	case int64:
		return float64(vv), true
	default:
		return 0, false
	}
}

func toTime(v interface{}) (time.Time, bool) {
	switch vv := v.(type) {
	case time.Time:
		return vv, true
	case Stamp:
		return vv.Time, true
	case string:
		if t, err := time.Parse(time.RFC3339Nano, vv); err == nil {
			return t, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
