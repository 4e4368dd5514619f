package cache

import (
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "endpoint without params",
			key: CacheKey{
				Endpoint: "/v2/category/tree",
			},
			want: "catalog:v2/category/tree",
		},
		{
			name: "category info",
			key: CacheKey{
				Endpoint: "/v2/category/tree",
				Params:   map[string]string{"category_id": "17028922", "language": "DEFAULT"},
			},
			want: "catalog:v2/category/tree:category_id=17028922:language=DEFAULT",
		},
		{
			name: "params sorted",
			key: CacheKey{
				Endpoint: "/v3/category/attribute/",
				Params: map[string]string{
					"language":       "RU",
					"attribute_type": "ALL",
					"category_id":    "1,2,3",
				},
			},
			want: "catalog:v3/category/attribute:attribute_type=ALL:category_id=1,2,3:language=RU",
		},
		{
			name: "empty key",
			key:  CacheKey{},
			want: "catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	key := CacheKey{
		Endpoint: "/v2/category/tree",
		Params:   map[string]string{"b": "2", "a": "1", "c": "3"},
	}

	first := key.String()
	for range 20 {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}
