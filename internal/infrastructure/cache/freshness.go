package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/macrolens/shelfprice/internal/logger"
)

// Default freshness window: 12h, give or take up to 4h per check
const (
	DefaultBaseDuration = 12 * time.Hour
	DefaultVariance     = 4 * time.Hour
)

// Policy decides when a cached entry must be refreshed.
// A fresh jitter in [-Variance, +Variance] is drawn on every check.
type Policy struct {
	Base     time.Duration
	Variance time.Duration
	Now      func() time.Time
	Rand     *rand.Rand
}

// DefaultPolicy returns the 12h +/- 4h policy on the wall clock
func DefaultPolicy() Policy {
	return Policy{
		Base:     DefaultBaseDuration,
		Variance: DefaultVariance,
		Now:      time.Now,
		Rand:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// entry is the persisted payload for one (source, term) pair
type entry struct {
	Timestamp string           `json:"timestamp"`
	Products  []domain.Product `json:"products"`
}

// FreshnessCache stores the last successful result per (source, term)
type FreshnessCache struct {
	store  domain.CacheStore
	policy Policy
	mu     sync.Mutex // guards policy.Rand
}

// NewFreshnessCache fills unset policy fields with the defaults
func NewFreshnessCache(store domain.CacheStore, policy Policy) *FreshnessCache {
	def := DefaultPolicy()
	if policy.Base <= 0 {
		policy.Base = def.Base
	}
	if policy.Variance < 0 {
		policy.Variance = 0
	}
	if policy.Now == nil {
		policy.Now = def.Now
	}
	if policy.Rand == nil {
		policy.Rand = def.Rand
	}
	return &FreshnessCache{store: store, policy: policy}
}

// Slug builds the filesystem-safe key for a (source, term) pair,
// e.g. ("ah", "Jonge Kaas") -> "ah_jonge_kaas". Spaces become "_" and any
// byte outside [a-z0-9-] is written as "~XX", so distinct terms never share
// a key: "m m" -> "m_m", "m_m" -> "m~5Fm", "m&m" -> "m~26m".
func Slug(source domain.SourceID, term string) string {
	t := strings.ToLower(strings.TrimSpace(term))

	var b strings.Builder
	b.Grow(len(source) + 1 + len(t))
	b.WriteString(string(source))
	b.WriteByte('_')
	for i := 0; i < len(t); i++ {
		switch c := t[i]; {
		case c == ' ':
			b.WriteByte('_')
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "~%02X", c)
		}
	}
	return b.String()
}

// IsStale reports whether the entry is absent, corrupt or past its jittered age
func (c *FreshnessCache) IsStale(ctx context.Context, source domain.SourceID, term string) bool {
	e, err := c.load(ctx, source, term)
	if err != nil {
		return true
	}
	ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		logger.Warn().Str("source", string(source)).Str("term", term).Str("timestamp", e.Timestamp).Msg("unreadable cache timestamp")
		return true
	}
	return c.expired(ts)
}

func (c *FreshnessCache) expired(ts time.Time) bool {
	return c.policy.Now().Sub(ts) > c.policy.Base+c.jitter()
}

func (c *FreshnessCache) jitter() time.Duration {
	v := int64(c.policy.Variance)
	if v <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.policy.Rand.Int64N(2*v+1) - v)
}

// Read returns the cached products. Any store or decode failure is ErrCacheMiss.
func (c *FreshnessCache) Read(ctx context.Context, source domain.SourceID, term string) ([]domain.Product, error) {
	e, err := c.load(ctx, source, term)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("source", string(source)).Str("term", term).Int("products", len(e.Products)).Msg("loaded products from cache")
	return e.Products, nil
}

// Write overwrites the entry with products stamped at the current time
func (c *FreshnessCache) Write(ctx context.Context, source domain.SourceID, term string, products []domain.Product) error {
	payload, err := json.Marshal(entry{
		Timestamp: c.policy.Now().UTC().Format(time.RFC3339Nano),
		Products:  products,
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.store.Set(ctx, Slug(source, term), payload); err != nil {
		return err
	}
	logger.Info().Str("source", string(source)).Str("term", term).Int("products", len(products)).Msg("saved products to cache")
	return nil
}

func (c *FreshnessCache) load(ctx context.Context, source domain.SourceID, term string) (*entry, error) {
	key := Slug(source, term)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if err != domain.ErrCacheMiss {
			logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		}
		return nil, domain.ErrCacheMiss
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("corrupt cache entry, treating as miss")
		return nil, domain.ErrCacheMiss
	}
	for _, p := range e.Products {
		if err := p.Validate(); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("invalid cached product, treating as miss")
			return nil, domain.ErrCacheMiss
		}
	}
	return &e, nil
}
