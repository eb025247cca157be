package bloom

import (
	"context"
	_ "embed"
	"errors"

	"moderation/internal/pkg/hash"
	"moderation/internal/pkg/redis"
)

var (
	// ErrTooLargeOffset indicates the offset is too large in bitset.
	ErrTooLargeOffset = errors.New("too large offset")

	//go:embed set_script.lua
	setLuaScript string
	setScript    = redis.NewScript(setLuaScript)

	//go:embed get_script.lua
	getLuaScript string
	getScript    = redis.NewScript(getLuaScript)
)

// Filter is a Bloom filter whose bits live in a Redis string. One extra bit
// past the hashed range marks the filter as sealed, i.e. fully populated.
type Filter struct {
	bitSet         bitSetProvider
	bits           uint
	kHashFunctions uint
}

// New creates a filter of bits bits under key, using k hash functions.
func New(store redis.Cache, key string, bits uint, k uint) *Filter {
	return newFilter(newRedisBitSet(store, key, bits+1), bits, k)
}

func newFilter(bs bitSetProvider, bits, k uint) *Filter {
	if k == 0 {
		k = 1
	}
	return &Filter{bitSet: bs, bits: bits, kHashFunctions: k}
}

// locations derives k bit offsets by salting data with the function index.
func (f *Filter) locations(data []byte) []uint {
	salted := make([]byte, len(data)+1)
	copy(salted, data)
	locations := make([]uint, f.kHashFunctions)
	for i := uint(0); i < f.kHashFunctions; i++ {
		salted[len(data)] = byte(i)
		locations[i] = uint(hash.Hash(salted) % uint64(f.bits))
	}
	return locations
}

// Add records data in the filter.
func (f *Filter) Add(ctx context.Context, data []byte) error {
	return f.bitSet.set(ctx, f.locations(data))
}

// AddString is Add for strings.
func (f *Filter) AddString(ctx context.Context, s string) error {
	return f.Add(ctx, []byte(s))
}

// MayContain reports whether data may have been added. False is definitive.
func (f *Filter) MayContain(ctx context.Context, data []byte) (bool, error) {
	return f.bitSet.check(ctx, f.locations(data))
}

// MayContainString is MayContain for strings.
func (f *Filter) MayContainString(ctx context.Context, s string) (bool, error) {
	return f.MayContain(ctx, []byte(s))
}

// Seal marks the filter as holding every member.
func (f *Filter) Seal(ctx context.Context) error {
	return f.bitSet.set(ctx, []uint{f.bits})
}

// Sealed reports whether Seal ran since the bits were last dropped. A key that
// was evicted, or recreated by Add after being evicted, is not sealed.
func (f *Filter) Sealed(ctx context.Context) (bool, error) {
	return f.bitSet.check(ctx, []uint{f.bits})
}

// Reset drops every bit, including the seal.
func (f *Filter) Reset(ctx context.Context) error {
	return f.bitSet.del(ctx)
}
