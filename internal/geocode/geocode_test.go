package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestNormalizeCity(t *testing.T) {
	cases := map[string]string{
		"г. Алматы":        "Алматы",
		"Алматы/Иные":      "Алматы",
		"Астана (новая)":   "Астана",
		"":                 "",
		"  Шымкент  ":      "Шымкент",
	}
	for in, want := range cases {
		if got := normalizeCity(in); got != want {
			t.Errorf("normalizeCity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoinNonEmpty(t *testing.T) {
	got := joinNonEmpty("ул. Абая 10", "Алматы", "", "Казахстан")
	want := "ул. Абая 10, Алматы, Казахстан"
	if got != want {
		t.Fatalf("joinNonEmpty = %q, want %q", got, want)
	}
}

// The street-level query carries street and house as one space-joined
// token, followed by the comma-separated city/region/country tail.
func TestGeocode_StreetQueryComposition(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"result":{"items":[{"id":"123","point":{"lat":43.25,"lon":76.95}}]}}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "key", 1)
	lat, lon := p.Geocode(context.Background(), "Казахстан", "Алматинская область", "Алматы", "ул. Абая", "10")
	if lat == nil || lon == nil {
		t.Fatal("expected coordinates from the stub server")
	}

	want := "ул. Абая 10, Алматы, Алматинская область, Казахстан"
	var found bool
	for _, q := range queries {
		if q == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("street query %q never issued; saw %v", want, queries)
	}
}

func TestIsDigits(t *testing.T) {
	if !isDigits("12345") {
		t.Fatal("isDigits(\"12345\") should be true")
	}
	if isDigits("12a45") || isDigits("") {
		t.Fatal("isDigits should reject non-digit and empty strings")
	}
}

func TestGeocode_EmptyCityReturnsNil(t *testing.T) {
	p := NewProvider("http://example.invalid", "key", 5)
	lat, lon := p.Geocode(context.Background(), "Казахстан", "", "", "ул. Абая", "10")
	if lat != nil || lon != nil {
		t.Fatal("Geocode with no city should return (nil, nil)")
	}
}

func countingServer(t *testing.T, calls *int32, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

// Identical address tuples within one batch issue at most one outbound
// request per unique (q, city_id, location, radius) key.
func TestGeocode_CachesIdenticalQueries(t *testing.T) {
	var calls int32
	srv := countingServer(t, &calls,
		`{"result":{"items":[{"id":"123","point":{"lat":51.1,"lon":71.4}}]}}`, http.StatusOK)
	defer srv.Close()

	p := NewProvider(srv.URL, "key", 5)
	for i := 0; i < 3; i++ {
		lat, lon := p.Geocode(context.Background(), "Казахстан", "", "Астана", "", "")
		if lat == nil || lon == nil {
			t.Fatal("expected coordinates from the stub server")
		}
	}

	// One city-resolution call plus one biased city query; repeats hit
	// the caches.
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 outbound requests for 3 identical geocodes, got %d", got)
	}
}

func TestGeocode_FailuresAreCachedWithinBatch(t *testing.T) {
	var calls int32
	srv := countingServer(t, &calls, `{}`, http.StatusTooManyRequests)
	defer srv.Close()

	p := NewProvider(srv.URL, "key", 5)
	for i := 0; i < 3; i++ {
		lat, lon := p.Geocode(context.Background(), "Казахстан", "", "Астана", "", "")
		if lat != nil || lon != nil {
			t.Fatal("expected degraded (nil, nil) on quota errors")
		}
	}
	// With city resolution failed there is no bias, so the city query
	// shares the resolution query's cache key: one request total.
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("failed lookups must not be retried within a batch, got %d requests", got)
	}
}

func TestClose_ClearsCaches(t *testing.T) {
	var calls int32
	srv := countingServer(t, &calls,
		`{"result":{"items":[{"id":"123","point":{"lat":51.1,"lon":71.4}}]}}`, http.StatusOK)
	defer srv.Close()

	p := NewProvider(srv.URL, "key", 5)
	p.Geocode(context.Background(), "Казахстан", "", "Астана", "", "")
	first := atomic.LoadInt32(&calls)

	p.Close()
	p.Geocode(context.Background(), "Казахстан", "", "Астана", "", "")
	if got := atomic.LoadInt32(&calls); got != first*2 {
		t.Fatalf("expected fresh outbound requests after Close, got %d (first batch %d)", got, first)
	}
}
