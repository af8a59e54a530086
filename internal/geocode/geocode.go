// Package geocode implements the async, cached geocoder client: city-biased
// address lookup against a 2GIS-compatible endpoint, with a bounded
// concurrency slot and two in-memory caches.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const defaultCountry = "Казахстан"

var cityPrefixPattern = regexp.MustCompile(`(?i)^г\.\s*`)
var parentheticalPattern = regexp.MustCompile(`\(.*?\)`)

// queryKey is the cache key for a raw geocode request: the query string
// plus the biasing parameters, so identical address tuples within a
// batch issue at most one outbound request per unique key.
type queryKey struct {
	q        string
	cityID   string
	location string
	radius   int
}

type cityKey struct {
	city    string
	country string
}

type point struct {
	lat, lon *float64
}

type cityResolution struct {
	cityID string
	lat    *float64
	lon    *float64
}

// Provider is the 2GIS-backed geocoder: one HTTP client, a concurrency
// semaphore, a query cache and a city cache.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	sem     *semaphore.Weighted

	mu        sync.Mutex
	cache     map[queryKey]*point
	cityCache map[cityKey]cityResolution
}

// NewProvider builds a Provider with the given concurrency bound
// (default 5).
func NewProvider(baseURL, apiKey string, concurrency int64) *Provider {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Provider{
		apiKey:    apiKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 20 * time.Second},
		sem:       semaphore.NewWeighted(concurrency),
		cache:     make(map[queryKey]*point),
		cityCache: make(map[cityKey]cityResolution),
	}
}

// Close clears both caches. The pipeline closes the provider at the end
// of each batch so a failed or missing item is not retried within a
// batch but is retried on the next one.
func (p *Provider) Close() {
	p.mu.Lock()
	p.cache = make(map[queryKey]*point)
	p.cityCache = make(map[cityKey]cityResolution)
	p.mu.Unlock()
}

// Geocode resolves (country, region, city, street, house) to (lat, lon),
// both possibly nil. Never returns an error: every failure mode
// (timeout, network error, 401/403/429, non-2xx) degrades to an empty
// result instead.
func (p *Provider) Geocode(ctx context.Context, country, region, city, street, house string) (lat, lon *float64) {
	cityN := normalizeCity(clean(city))
	countryS := clean(country)
	if countryS == "" {
		countryS = defaultCountry
	}

	if cityN == "" {
		return nil, nil
	}

	res := p.resolveCity(ctx, cityN, countryS)

	// Street and house form one address token ("ул. Абая 10"), separated
	// by a space, not the comma the remaining query parts use.
	addrLine := strings.TrimSpace(clean(street) + " " + clean(house))
	qFull := joinNonEmpty(addrLine, cityN, clean(region), countryS)
	qCity := joinNonEmpty(cityN, countryS)

	// The 40km radius bias only makes sense relative to a known city
	// centroid; without one, both go unset.
	var location string
	var radius int
	if res.lat != nil && res.lon != nil {
		location = fmt.Sprintf("%s,%s", trimFloat(*res.lon), trimFloat(*res.lat))
		radius = 40000
	}

	if addrLine != "" {
		if pt := p.geocodeRaw(ctx, qFull, res.cityID, location, radius); pt != nil && pt.lat != nil && pt.lon != nil {
			return pt.lat, pt.lon
		}
	}

	if pt := p.geocodeRaw(ctx, qCity, res.cityID, location, radius); pt != nil && pt.lat != nil && pt.lon != nil {
		return pt.lat, pt.lon
	}

	return res.lat, res.lon
}

func (p *Provider) resolveCity(ctx context.Context, city, country string) cityResolution {
	key := cityKey{city: city, country: country}

	p.mu.Lock()
	if cached, ok := p.cityCache[key]; ok {
		p.mu.Unlock()
		return cached
	}
	p.mu.Unlock()

	pt, id := p.geocodeRawWithID(ctx, joinNonEmpty(city, country), "", "", 0)
	res := cityResolution{cityID: id}
	if pt != nil {
		res.lat, res.lon = pt.lat, pt.lon
	}

	p.mu.Lock()
	p.cityCache[key] = res
	p.mu.Unlock()
	return res
}

// geocodeRaw issues (or serves from cache) a single biased query and
// returns the first result's point, if any.
func (p *Provider) geocodeRaw(ctx context.Context, q, cityID, location string, radius int) *point {
	pt, _ := p.geocodeRawWithID(ctx, q, cityID, location, radius)
	return pt
}

func (p *Provider) geocodeRawWithID(ctx context.Context, q, cityID, location string, radius int) (*point, string) {
	if strings.TrimSpace(q) == "" {
		return nil, ""
	}

	key := queryKey{q: q, cityID: cityID, location: location, radius: radius}

	p.mu.Lock()
	if cached, ok := p.cache[key]; ok {
		p.mu.Unlock()
		if cached == nil {
			return nil, ""
		}
		return cached, ""
	}
	p.mu.Unlock()

	item, id := p.fetch(ctx, q, cityID, location, radius)

	p.mu.Lock()
	p.cache[key] = item
	p.mu.Unlock()

	return item, id
}

func (p *Provider) fetch(ctx context.Context, q, cityID, location string, radius int) (*point, string) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, ""
	}
	defer p.sem.Release(1)

	params := url.Values{}
	params.Set("q", q)
	params.Set("key", p.apiKey)
	params.Set("locale", "ru_KZ")
	params.Set("fields", "items.point,items.full_name,items.name,items.id,items.type")
	if cityID != "" {
		params.Set("city_id", cityID)
	}
	if location != "" {
		params.Set("location", location)
	}
	if radius > 0 {
		params.Set("radius", strconv.Itoa(radius))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, ""
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, ""
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, ""
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ""
	}

	var body struct {
		Result struct {
			Items []struct {
				ID    string `json:"id"`
				Point struct {
					Lat *float64 `json:"lat"`
					Lon *float64 `json:"lon"`
				} `json:"point"`
			} `json:"items"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, ""
	}
	if len(body.Result.Items) == 0 {
		return nil, ""
	}

	first := body.Result.Items[0]
	id := ""
	if isDigits(first.ID) {
		id = first.ID
	}
	return &point{lat: first.Point.Lat, lon: first.Point.Lon}, id
}

func clean(v string) string {
	return strings.TrimSpace(v)
}

func normalizeCity(city string) string {
	if city == "" {
		return ""
	}
	c := cityPrefixPattern.ReplaceAllString(city, "")
	c = strings.SplitN(c, "/", 2)[0]
	c = strings.TrimSpace(c)
	c = parentheticalPattern.ReplaceAllString(c, "")
	return strings.TrimSpace(c)
}

func joinNonEmpty(parts ...string) string {
	var xs []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			xs = append(xs, p)
		}
	}
	return strings.Join(xs, ", ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func trimFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
