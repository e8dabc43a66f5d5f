package cache

import (
	"net/url"
	"testing"
)

func TestQueryKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  QueryKey
		want string
	}{
		{
			name: "plain listing page",
			key: QueryKey{
				Collection: "fiscalizacoes",
				Page:       1,
			},
			want: "backoffice:fiscalizacoes:page=1",
		},
		{
			name: "collection with surrounding slashes",
			key: QueryKey{
				Collection: "/documentos/",
				Page:       3,
			},
			want: "backoffice:documentos:page=3",
		},
		{
			name: "search query is lowercased",
			key: QueryKey{
				Collection: "fiscalizacoes",
				Page:       2,
				Search:     "ABC1234",
			},
			want: "backoffice:fiscalizacoes:page=2:q=abc1234",
		},
		{
			name: "filters sorted by key",
			key: QueryKey{
				Collection: "fiscalizacoes",
				Page:       1,
				Filters: url.Values{
					"tipo": []string{"conforme"},
					"agg":  []string{"7d"},
				},
			},
			want: "backoffice:fiscalizacoes:page=1:agg=7d:tipo=conforme",
		},
		{
			name: "search and filters combined",
			key: QueryKey{
				Collection: "documentos",
				Page:       1,
				Search:     "doc-100",
				Filters: url.Values{
					"tipo": []string{"nao_conforme"},
				},
			},
			want: "backoffice:documentos:page=1:q=doc-100:tipo=nao_conforme",
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

func TestQueryKey_Deterministic(t *testing.T) {
	key := QueryKey{
		Collection: "fiscalizacoes",
		Page:       1,
		Filters: url.Values{
			"b": []string{"2"},
			"a": []string{"1"},
			"c": []string{"3"},
		},
	}

	first := key.String()
	for i := 0; i < 20; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}

func TestCollectionPattern(t *testing.T) {
	if got := CollectionPattern("fiscalizacoes"); got != "backoffice:fiscalizacoes:*" {
		t.Errorf("CollectionPattern() = %q, want backoffice:fiscalizacoes:*", got)
	}
	if got := CollectionPattern("/documentos/"); got != "backoffice:documentos:*" {
		t.Errorf("CollectionPattern() = %q, want backoffice:documentos:*", got)
	}
}

func TestCollectionPatternCoversQueryKeys(t *testing.T) {
	// Every key of a collection must fall under its invalidation pattern.
	keys := []QueryKey{
		{Collection: "fiscalizacoes", Page: 1},
		{Collection: "fiscalizacoes", Page: 7, Search: "abc"},
		{Collection: "fiscalizacoes", Page: 1, Filters: url.Values{"agg": []string{"7d"}}},
	}
	prefix := "backoffice:fiscalizacoes:"

	for _, key := range keys {
		s := key.String()
		if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
			t.Errorf("key %q does not match pattern prefix %q", s, prefix)
		}
	}
}
