// Package instruments caches per-exchange instrument catalogs and ranks
// search matches over them.
package instruments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"tradegate/internal/broker"
	"tradegate/internal/models"
	"tradegate/internal/repository"
)

// ErrNoAccessClient is returned when no active client with interactive
// credentials exists to fetch a catalog with. Catalog reads ride on any
// client's session; which one is irrelevant.
var ErrNoAccessClient = errors.New("no active client with credentials available for instrument lookup")

const defaultMaxAge = time.Hour

// entry is one exchange's cached catalog.
type entry struct {
	records   []broker.Instrument
	fetchedAt time.Time
}

// Cache holds instrument catalogs per exchange with a TTL.
type Cache struct {
	clients  *repository.ClientRepository
	sessions *broker.SessionManager
	gateway  *broker.Gateway

	mu     sync.RWMutex
	cache  map[string]entry
	maxAge time.Duration
}

// NewCache creates a Cache with the default 1 hour TTL.
func NewCache(clients *repository.ClientRepository, sessions *broker.SessionManager, gateway *broker.Gateway) *Cache {
	return &Cache{
		clients:  clients,
		sessions: sessions,
		gateway:  gateway,
		cache:    make(map[string]entry),
		maxAge:   defaultMaxAge,
	}
}

// Search returns instruments on exchange matching query, best matches
// first, at most limit rows. With useCache false the catalog is always
// refetched.
func (c *Cache) Search(ctx context.Context, exchange, query string, limit int, useCache bool) ([]broker.Instrument, error) {
	if !broker.ValidExchange(exchange) {
		return nil, broker.Validationf("invalid exchange %q, valid exchanges: %v", exchange, broker.ValidExchanges)
	}
	exchange = strings.ToUpper(exchange)
	if limit <= 0 {
		limit = 20
	}

	records, err := c.catalog(ctx, exchange, useCache)
	if err != nil {
		return nil, err
	}
	return rank(records, query, limit), nil
}

// Refresh forces a catalog fetch for exchange, ignoring the TTL.
func (c *Cache) Refresh(ctx context.Context, exchange string) (int, error) {
	if !broker.ValidExchange(exchange) {
		return 0, broker.Validationf("invalid exchange %q, valid exchanges: %v", exchange, broker.ValidExchanges)
	}
	records, err := c.catalog(ctx, strings.ToUpper(exchange), false)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// catalog returns the exchange's instrument list, from cache when fresh.
func (c *Cache) catalog(ctx context.Context, exchange string, useCache bool) ([]broker.Instrument, error) {
	if useCache {
		c.mu.RLock()
		if e, ok := c.cache[exchange]; ok && time.Since(e.fetchedAt) < c.maxAge {
			c.mu.RUnlock()
			return e.records, nil
		}
		c.mu.RUnlock()
	}

	records, err := c.fetch(ctx, exchange)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[exchange] = entry{records: records, fetchedAt: time.Now()}
	c.mu.Unlock()

	log.Printf("instruments: refreshed %s catalog, %d instruments", exchange, len(records))
	return records, nil
}

// fetch pulls the full catalog using any client able to authenticate.
func (c *Cache) fetch(ctx context.Context, exchange string) ([]broker.Instrument, error) {
	accessClients, err := c.clients.GetActiveWithCredentials(models.SegmentInteractive, 1)
	if err != nil {
		return nil, fmt.Errorf("load access client: %w", err)
	}
	if len(accessClients) == 0 {
		return nil, ErrNoAccessClient
	}

	session, err := c.sessions.Authenticate(ctx, accessClients[0], models.SegmentInteractive, false)
	if err != nil {
		return nil, fmt.Errorf("authenticate access client: %w", err)
	}
	return c.gateway.SearchInstruments(ctx, session.Token, exchange)
}

// rank orders matches by tier: exact symbol, then symbol prefix, then
// substring anywhere in symbol, name or token. Catalog order is preserved
// inside each tier.
func rank(records []broker.Instrument, query string, limit int) []broker.Instrument {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		if len(records) > limit {
			return records[:limit]
		}
		return records
	}

	var exact, prefix, substring []broker.Instrument
	for _, rec := range records {
		symbol := strings.ToLower(rec.Symbol)
		switch {
		case symbol == q:
			exact = append(exact, rec)
		case strings.HasPrefix(symbol, q):
			prefix = append(prefix, rec)
		case strings.Contains(symbol, q),
			strings.Contains(strings.ToLower(rec.Name), q),
			strings.Contains(strings.ToLower(rec.Token), q):
			substring = append(substring, rec)
		}
	}

	ranked := make([]broker.Instrument, 0, len(exact)+len(prefix)+len(substring))
	ranked = append(ranked, exact...)
	ranked = append(ranked, prefix...)
	ranked = append(ranked, substring...)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
