package bloom

import (
	"context"
	"errors"
	"strconv"

	"moderation/internal/pkg/redis"
)

// redisBitSet keeps the filter bits in one Redis string, touched only through
// the SETBIT/GETBIT scripts so a lookup is a single round trip.
type redisBitSet struct {
	store redis.Cache
	key   string
	bits  uint
}

func newRedisBitSet(store redis.Cache, key string, bits uint) *redisBitSet {
	return &redisBitSet{store: store, key: key, bits: bits}
}

// offsetArgs renders offsets as script arguments, dropping repeats.
func (r *redisBitSet) offsetArgs(offsets []uint) ([]any, error) {
	seen := make(map[uint]struct{}, len(offsets))
	args := make([]any, 0, len(offsets))
	for _, off := range offsets {
		if off >= r.bits {
			return nil, ErrTooLargeOffset
		}
		if _, dup := seen[off]; dup {
			continue
		}
		seen[off] = struct{}{}
		args = append(args, strconv.FormatUint(uint64(off), 10))
	}
	return args, nil
}

func (r *redisBitSet) check(ctx context.Context, offsets []uint) (bool, error) {
	args, err := r.offsetArgs(offsets)
	if err != nil {
		return false, err
	}
	resp, err := r.store.ScriptRun(ctx, getScript, []string{r.key}, args...)
	switch {
	case errors.Is(err, redis.Nil):
		// Lua false comes back as a nil reply
		return false, nil
	case err != nil:
		return false, err
	}
	n, _ := resp.(int64)
	return n == 1, nil
}

func (r *redisBitSet) set(ctx context.Context, offsets []uint) error {
	args, err := r.offsetArgs(offsets)
	if err != nil {
		return err
	}
	if _, err := r.store.ScriptRun(ctx, setScript, []string{r.key}, args...); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (r *redisBitSet) del(ctx context.Context) error {
	_, err := r.store.Del(ctx, r.key)
	return err
}
