package hostfuncs

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/tsuki-dev/tsuki-host/internal/resource"
)

// DefaultBucket is the only bucket id the store answers to.
const DefaultBucket = ""

// ListKeysPageSize is the number of keys kv.list-keys returns per page.
const ListKeysPageSize = 100

// KeyValueStore is a process-wide key-value map shared by every plugin call.
// All operations serialize on a single mutex.
type KeyValueStore struct {
	data map[string][]byte
	mu   sync.Mutex
}

// NewKeyValueStore returns an empty store.
func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{data: make(map[string][]byte)}
}

// Open returns the bucket named id. Only DefaultBucket exists.
func (s *KeyValueStore) Open(id string) (*Bucket, error) {
	if id != DefaultBucket {
		return nil, ErrNoSuchStore
	}
	return &Bucket{store: s}, nil
}

// Bucket is an open view of the store held behind a guest handle.
type Bucket struct {
	store *KeyValueStore
}

// Get returns a copy of the value for key.
func (b *Bucket) Get(key string) ([]byte, bool) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	v, ok := b.store.data[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

// Set stores a copy of value under key.
func (b *Bucket) Set(key string, value []byte) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	b.store.data[key] = bytes.Clone(value)
}

// Delete removes key. Missing keys are not an error.
func (b *Bucket) Delete(key string) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	delete(b.store.data, key)
}

// Exists reports whether key is present.
func (b *Bucket) Exists(key string) bool {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	_, ok := b.store.data[key]
	return ok
}

// ListKeys returns up to ListKeysPageSize keys starting at offset cursor of a
// sorted snapshot, and the cursor of the next page. Cursors are not stable
// under concurrent mutation.
func (b *Bucket) ListKeys(cursor uint64) ([]string, *uint64) {
	b.store.mu.Lock()
	keys := make([]string, 0, len(b.store.data))
	for k := range b.store.data {
		keys = append(keys, k)
	}
	b.store.mu.Unlock()
	sort.Strings(keys)

	if cursor >= uint64(len(keys)) {
		return []string{}, nil
	}
	end := cursor + ListKeysPageSize
	if end >= uint64(len(keys)) {
		return keys[cursor:], nil
	}
	return keys[cursor:end], &end
}

// KVOpenRequest is the payload of kv.open.
type KVOpenRequest struct {
	ID string `json:"id"`
}

// KVKeyRequest addresses one key of an open bucket.
type KVKeyRequest struct {
	Key    string `json:"key"`
	Bucket uint32 `json:"bucket"`
}

// KVSetRequest is the payload of kv.set.
type KVSetRequest struct {
	Key    string `json:"key"`
	Value  []byte `json:"value"`
	Bucket uint32 `json:"bucket"`
}

// KVGetResponse is the result of kv.get. Value is null when the key is absent.
type KVGetResponse struct {
	Value []byte `json:"value"`
	Found bool   `json:"found"`
}

// KVExistsResponse is the result of kv.exists.
type KVExistsResponse struct {
	Exists bool `json:"exists"`
}

// KVListKeysRequest is the payload of kv.list-keys.
type KVListKeysRequest struct {
	Cursor *uint64 `json:"cursor,omitempty"`
	Bucket uint32  `json:"bucket"`
}

// KVListKeysResponse is one page of keys.
type KVListKeysResponse struct {
	Cursor *uint64  `json:"cursor,omitempty"`
	Keys   []string `json:"keys"`
}

// KVOpen opens a bucket and returns its handle.
func KVOpen(_ context.Context, caps *Capabilities, req KVOpenRequest) (HandleResponse, error) {
	if caps.KeyValue == nil {
		return HandleResponse{}, ErrUnsupported
	}
	bucket, err := caps.KeyValue.Open(req.ID)
	if err != nil {
		return HandleResponse{}, err
	}
	h, err := caps.Table.Push(bucket)
	if err != nil {
		return HandleResponse{}, err
	}
	return HandleResponse{Handle: h}, nil
}

// KVGet reads a key.
func KVGet(_ context.Context, caps *Capabilities, req KVKeyRequest) (KVGetResponse, error) {
	bucket, err := resource.Get[*Bucket](caps.Table, req.Bucket)
	if err != nil {
		return KVGetResponse{}, err
	}
	v, ok := bucket.Get(req.Key)
	return KVGetResponse{Value: v, Found: ok}, nil
}

// KVSet writes a key.
func KVSet(_ context.Context, caps *Capabilities, req KVSetRequest) (Empty, error) {
	bucket, err := resource.Get[*Bucket](caps.Table, req.Bucket)
	if err != nil {
		return Empty{}, err
	}
	bucket.Set(req.Key, req.Value)
	return Empty{}, nil
}

// KVDelete removes a key.
func KVDelete(_ context.Context, caps *Capabilities, req KVKeyRequest) (Empty, error) {
	bucket, err := resource.Get[*Bucket](caps.Table, req.Bucket)
	if err != nil {
		return Empty{}, err
	}
	bucket.Delete(req.Key)
	return Empty{}, nil
}

// KVExists reports whether a key is present.
func KVExists(_ context.Context, caps *Capabilities, req KVKeyRequest) (KVExistsResponse, error) {
	bucket, err := resource.Get[*Bucket](caps.Table, req.Bucket)
	if err != nil {
		return KVExistsResponse{}, err
	}
	return KVExistsResponse{Exists: bucket.Exists(req.Key)}, nil
}

// KVListKeys returns one page of keys.
func KVListKeys(_ context.Context, caps *Capabilities, req KVListKeysRequest) (KVListKeysResponse, error) {
	bucket, err := resource.Get[*Bucket](caps.Table, req.Bucket)
	if err != nil {
		return KVListKeysResponse{}, err
	}
	var cursor uint64
	if req.Cursor != nil {
		cursor = *req.Cursor
	}
	keys, next := bucket.ListKeys(cursor)
	return KVListKeysResponse{Keys: keys, Cursor: next}, nil
}

// KVClose releases a bucket handle.
func KVClose(_ context.Context, caps *Capabilities, req HandleRequest) (Empty, error) {
	if _, err := resource.Take[*Bucket](caps.Table, req.Handle); err != nil {
		return Empty{}, err
	}
	return Empty{}, nil
}
