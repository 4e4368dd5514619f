// Package shard splits ordered work lists into contiguous partitions of
// ceil(n/shards) items, one per API credential.
package shard

import (
	"errors"
	"fmt"
)

// ErrInvalidPartition is returned when the shard count is not positive.
// It indicates a configuration error (for example zero credentials).
var ErrInvalidPartition = errors.New("invalid partition")

// Partition splits items into exactly shardCount contiguous shards.
//
// Shard size is ceil(len(items)/shardCount) and the i-th shard is
// items[size*i : size*(i+1)] clipped to bounds, so trailing shards may be
// empty. Shards share the backing array of items and must not be appended to.
func Partition[T any](items []T, shardCount int) ([][]T, error) {
	if shardCount < 1 {
		return nil, fmt.Errorf("%w: shard count must be >= 1 (got %d)", ErrInvalidPartition, shardCount)
	}

	size := (len(items) + shardCount - 1) / shardCount
	shards := make([][]T, shardCount)
	for i := range shards {
		lo := min(size*i, len(items))
		hi := min(size*(i+1), len(items))
		shards[i] = items[lo:hi:hi]
	}

	return shards, nil
}
