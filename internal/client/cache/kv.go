package cache

import "context"

// KV is the key/value contract both backends satisfy. Get returns
// (nil, nil) for a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Size(ctx context.Context) (int64, error)
}

// checkQuota fails with a *QuotaError when replacing key with value would
// push kv past limit. A limit <= 0 means unbounded.
func checkQuota(ctx context.Context, kv KV, backend, key string, value []byte, limit int64) error {
	if limit <= 0 {
		return nil
	}
	current, err := kv.Size(ctx)
	if err != nil {
		return err
	}
	old, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if current-int64(len(old))+int64(len(value)) > limit {
		return &QuotaError{Backend: backend, Current: current, Attempted: int64(len(value)), Limit: limit}
	}
	return nil
}
