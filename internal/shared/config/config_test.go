package config

import "testing"

func TestNormalizeKVBackend(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		dbURL string
		want  string
	}{
		{name: "pg alias", raw: "PG", want: "postgres"},
		{name: "redis", raw: " redis ", want: "redis"},
		{name: "explicit memory wins over db url", raw: "memory", dbURL: "postgres://x", want: "memory"},
		{name: "empty with db url", dbURL: "postgres://x", want: "postgres"},
		{name: "empty without db url", want: "memory"},
		{name: "unknown passes through", raw: "Mongo", dbURL: "postgres://x", want: "mongo"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeKVBackend(tt.raw, tt.dbURL); got != tt.want {
				t.Fatalf("normalizeKVBackend(%q, %q) = %q, want %q", tt.raw, tt.dbURL, got, tt.want)
			}
		})
	}
}
