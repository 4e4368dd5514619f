package shard

import (
	"errors"
	"slices"
	"strconv"
	"testing"
)

func TestPartition_InvalidShardCount(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := Partition([]string{"1"}, n)
		if !errors.Is(err, ErrInvalidPartition) {
			t.Errorf("Partition(_, %d) error = %v, want ErrInvalidPartition", n, err)
		}
	}
}

func TestPartition_CoversInputInCeilSizedShards(t *testing.T) {
	for length := 1; length <= 40; length++ {
		items := make([]string, length)
		for i := range items {
			items[i] = strconv.Itoa(i)
		}

		for shardCount := 1; shardCount <= 12; shardCount++ {
			shards, err := Partition(items, shardCount)
			if err != nil {
				t.Fatalf("Partition(%d items, %d) unexpected error: %v", length, shardCount, err)
			}
			if len(shards) != shardCount {
				t.Fatalf("Partition(%d items, %d) returned %d shards", length, shardCount, len(shards))
			}

			var joined []string
			for _, s := range shards {
				joined = append(joined, s...)
			}
			if !slices.Equal(joined, items) {
				t.Errorf("Partition(%d items, %d) concatenation = %v, want %v", length, shardCount, joined, items)
			}

			// Every shard is full except the last non-empty one; the rest are
			// empty, so sizes may differ by more than one.
			size := (length + shardCount - 1) / shardCount
			for i, s := range shards {
				want := min(max(length-size*i, 0), size)
				if len(s) != want {
					t.Errorf("Partition(%d items, %d) shard %d has %d items, want %d", length, shardCount, i, len(s), want)
				}
			}
		}
	}
}

func TestPartition_SingleShard(t *testing.T) {
	items := []int{3, 1, 2}
	shards, err := Partition(items, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(shards) != 1 || !slices.Equal(shards[0], items) {
		t.Errorf("Partition(items, 1) = %v, want [%v]", shards, items)
	}
}

func TestPartition_EmptyInput(t *testing.T) {
	shards, err := Partition([]string{}, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(shards) != 4 {
		t.Fatalf("Expected 4 shards, got %d", len(shards))
	}
	for i, s := range shards {
		if len(s) != 0 {
			t.Errorf("shard %d = %v, want empty", i, s)
		}
	}
}

func TestPartition_Layout(t *testing.T) {
	tests := []struct {
		name       string
		items      []string
		shardCount int
		expected   [][]string
	}{
		{
			name:       "three ids over two credentials",
			items:      []string{"1", "2", "3"},
			shardCount: 2,
			expected:   [][]string{{"1", "2"}, {"3"}},
		},
		{
			name:       "trailing shards empty",
			items:      []string{"a", "b", "c", "d", "e"},
			shardCount: 4,
			expected:   [][]string{{"a", "b"}, {"c", "d"}, {"e"}, {}},
		},
		{
			name:       "sizes differ by two",
			items:      []string{"1", "2", "3", "4", "5", "6", "7"},
			shardCount: 5,
			expected:   [][]string{{"1", "2"}, {"3", "4"}, {"5", "6"}, {"7"}, {}},
		},
		{
			name:       "fewer items than shards",
			items:      []string{"x"},
			shardCount: 3,
			expected:   [][]string{{"x"}, {}, {}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shards, err := Partition(tt.items, tt.shardCount)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(shards) != len(tt.expected) {
				t.Fatalf("got %d shards, want %d", len(shards), len(tt.expected))
			}
			for i := range tt.expected {
				if !slices.Equal(shards[i], tt.expected[i]) {
					t.Errorf("shard %d = %v, want %v", i, shards[i], tt.expected[i])
				}
			}
		})
	}
}

func TestPartition_ShardsDoNotAliasOnAppend(t *testing.T) {
	items := []int{1, 2, 3, 4}
	shards, err := Partition(items, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	_ = append(shards[0], 99)
	if items[2] != 3 {
		t.Errorf("append to shard 0 overwrote input: %v", items)
	}
}
