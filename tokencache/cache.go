package tokencache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/goSession/jwt"
)

const (
	// DefaultMaxEntries bounds the cache when Config.MaxEntries is zero.
	DefaultMaxEntries = 10000
	// DefaultShards is the shard count when Config.Shards is zero.
	DefaultShards = 16
	// MaxShards is the largest accepted shard count.
	MaxShards = 256
	// DefaultSweepInterval is the sweeper period when Config.SweepInterval is zero.
	DefaultSweepInterval = time.Minute
)

var (
	// ErrCacheUnavailable is returned by lookups on a closed cache.
	ErrCacheUnavailable = errors.New("token cache unavailable")
	// ErrInvalidConfig wraps every configuration error returned by New.
	ErrInvalidConfig = errors.New("invalid token cache configuration")
	// ErrEmptyIdentity is returned for operations on the empty identity.
	ErrEmptyIdentity = errors.New("identity is empty")
)

// Issuer mints tokens for the cache.
type Issuer interface {
	Issue(subject string, claims map[string]any) (*jwt.Token, error)
	Validity() time.Duration
}

// Config configures a Cache. Zero values select defaults; HardTTL defaults to
// the issuer's validity. A negative SweepInterval disables the sweeper.
type Config struct {
	MaxEntries    int
	HardTTL       time.Duration
	RefreshBuffer time.Duration
	Shards        int
	SweepInterval time.Duration
	Eviction      EvictionPolicy
	Now           func() time.Time
	Logger        *zerolog.Logger
	// OnEvict runs with a shard lock held and must not call back into the cache.
	OnEvict func(identity string, reason EvictReason)
}

// Result describes the outcome of GetOrCreate and Refresh.
type Result struct {
	Entry Entry
	// Previous is the state the identity was in before the call.
	Previous State
	// Cached is true only when a fresh entry was returned unchanged.
	Cached bool
	// Stored is false when the cache was unavailable and the token was issued without caching.
	Stored bool
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Entries         int
	Hits            uint64
	Misses          uint64
	Issued          uint64
	Refreshed       uint64
	Invalidated     uint64
	EvictedCapacity uint64
	EvictedTTL      uint64
	EvictedExpired  uint64
	Degraded        uint64
}

type counters struct {
	hits            atomic.Uint64
	misses          atomic.Uint64
	issued          atomic.Uint64
	refreshed       atomic.Uint64
	invalidated     atomic.Uint64
	evictedCapacity atomic.Uint64
	evictedTTL      atomic.Uint64
	evictedExpired  atomic.Uint64
	degraded        atomic.Uint64
}

// Cache maps identities to their most recently issued token and decides, per
// lookup, whether that token is returned or replaced.
//
// Operations on one identity are serialized by its shard lock, so concurrent
// GetOrCreate calls never leave two live tokens behind and an Invalidate racing
// a GetOrCreate ends either with the new token stored or with no entry.
type Cache struct {
	issuer    Issuer
	cfg       Config
	shards    []*shard
	log       zerolog.Logger
	stats     counters
	closed    atomic.Bool
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New validates cfg and returns a running Cache.
func New(issuer Issuer, cfg Config) (*Cache, error) {
	if issuer == nil {
		return nil, fmt.Errorf("%w: issuer is nil", ErrInvalidConfig)
	}
	validity := issuer.Validity()
	if validity <= 0 {
		return nil, fmt.Errorf("%w: validity must be > 0", ErrInvalidConfig)
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Shards == 0 {
		cfg.Shards = DefaultShards
	}
	if cfg.HardTTL == 0 {
		cfg.HardTTL = validity
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Eviction == "" {
		cfg.Eviction = EvictLRU
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	switch {
	case cfg.MaxEntries < 0:
		return nil, fmt.Errorf("%w: MaxEntries must be > 0", ErrInvalidConfig)
	case cfg.HardTTL < 0:
		return nil, fmt.Errorf("%w: HardTTL must be > 0", ErrInvalidConfig)
	case cfg.RefreshBuffer < 0:
		return nil, fmt.Errorf("%w: RefreshBuffer must be >= 0", ErrInvalidConfig)
	case cfg.RefreshBuffer >= validity:
		return nil, fmt.Errorf("%w: RefreshBuffer %s must be shorter than validity %s", ErrInvalidConfig, cfg.RefreshBuffer, validity)
	case cfg.Shards < 0 || cfg.Shards > MaxShards:
		return nil, fmt.Errorf("%w: Shards must be within [1, %d]", ErrInvalidConfig, MaxShards)
	}
	if _, err := ParseEvictionPolicy(string(cfg.Eviction)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	n := cfg.Shards
	if n > cfg.MaxEntries {
		n = cfg.MaxEntries
	}

	c := &Cache{
		issuer: issuer,
		cfg:    cfg,
		shards: make([]*shard, n),
		log:    zerolog.Nop(),
		stop:   make(chan struct{}),
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger.With().Str("component", "tokencache").Logger()
	}
	for i, capacity := range splitCapacity(cfg.MaxEntries, n) {
		c.shards[i] = newShard(capacity, cfg.Eviction)
	}

	if cfg.SweepInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop(cfg.SweepInterval)
	}

	return c, nil
}

// RefreshBuffer returns the configured refresh buffer.
func (c *Cache) RefreshBuffer() time.Duration {
	return c.cfg.RefreshBuffer
}

// GetOrCreate returns the identity's cached token when it is fresh, and
// otherwise issues, stores and returns a new one.
//
// When issuance fails the cache is left as it was, except that an expired
// entry is dropped. On a closed cache a token is issued but not stored.
func (c *Cache) GetOrCreate(ctx context.Context, identity string, claims map[string]any) (Result, error) {
	return c.acquire(ctx, identity, claims, false)
}

// Refresh unconditionally replaces the identity's entry with a newly issued token.
func (c *Cache) Refresh(ctx context.Context, identity string, claims map[string]any) (Result, error) {
	return c.acquire(ctx, identity, claims, true)
}

func (c *Cache) acquire(ctx context.Context, identity string, claims map[string]any, force bool) (Result, error) {
	if identity == "" {
		return Result{}, ErrEmptyIdentity
	}
	log := c.logger(ctx)
	if c.closed.Load() {
		return c.issueDetached(log, identity, claims)
	}

	s := c.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.closed.Load() {
		return c.issueDetached(log, identity, claims)
	}

	now := c.cfg.Now()
	state := c.stateLocked(s, identity, now)

	if state == StateFresh && !force {
		e := s.entries[identity]
		s.order.OnGet(identity)
		c.stats.hits.Add(1)
		log.Debug().Str("identity", identity).Time("expires_at", e.ExpiresAt).Msg("returning cached token")
		return Result{Entry: *e, Previous: state, Cached: true, Stored: true}, nil
	}
	if !force {
		c.stats.misses.Add(1)
	}

	tok, err := c.issuer.Issue(identity, claims)
	if err != nil {
		if state == StateExpired {
			s.remove(identity)
		}
		log.Error().Err(err).Str("identity", identity).Msg("token issuance failed")
		return Result{}, err
	}

	entry := &Entry{
		Token:     tok.Encoded,
		Subject:   tok.Subject,
		TokenID:   tok.ID,
		CreatedAt: now,
		IssuedAt:  tok.IssuedAt,
		ExpiresAt: tok.ExpiresAt,
	}
	s.remove(identity)
	if victim, evicted := s.put(identity, entry); evicted {
		c.stats.evictedCapacity.Add(1)
		log.Debug().Str("identity", victim).Msg("evicted cached token for capacity")
		c.notifyEvict(victim, EvictCapacity)
	}

	c.stats.issued.Add(1)
	if force {
		c.stats.refreshed.Add(1)
	}
	log.Info().
		Str("identity", identity).
		Str("previous", state.String()).
		Bool("forced", force).
		Time("expires_at", entry.ExpiresAt).
		Msg("issued token")

	return Result{Entry: *entry, Previous: state, Stored: true}, nil
}

// Invalidate removes the identity's entry and reports whether one existed.
// It is a no-op on a closed cache.
func (c *Cache) Invalidate(ctx context.Context, identity string) bool {
	if identity == "" || c.closed.Load() {
		return false
	}
	s := c.shardFor(identity)
	s.mu.Lock()
	existed := s.remove(identity)
	s.mu.Unlock()

	if existed {
		c.stats.invalidated.Add(1)
		c.logger(ctx).Info().Str("identity", identity).Msg("invalidated cached token")
	}
	return existed
}

// HasValidToken reports whether an unexpired entry exists for identity. The
// refresh buffer is not considered.
func (c *Cache) HasValidToken(identity string) bool {
	if identity == "" || c.closed.Load() {
		return false
	}
	s := c.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[identity]
	if !ok {
		return false
	}
	now := c.cfg.Now()
	return !c.hardExpired(e, now) && !e.IsExpired(now)
}

// Lookup classifies the identity's entry without changing it.
func (c *Cache) Lookup(identity string) (Entry, State, error) {
	if c.closed.Load() {
		return Entry{}, StateAbsent, ErrCacheUnavailable
	}
	s := c.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[identity]
	now := c.cfg.Now()
	if !ok || (!e.IsExpired(now) && c.hardExpired(e, now)) {
		return Entry{}, StateAbsent, nil
	}
	return *e, e.Classify(now, c.cfg.RefreshBuffer), nil
}

// Len returns the number of stored entries, including ones not yet swept.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Stats returns activity counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:         c.Len(),
		Hits:            c.stats.hits.Load(),
		Misses:          c.stats.misses.Load(),
		Issued:          c.stats.issued.Load(),
		Refreshed:       c.stats.refreshed.Load(),
		Invalidated:     c.stats.invalidated.Load(),
		EvictedCapacity: c.stats.evictedCapacity.Load(),
		EvictedTTL:      c.stats.evictedTTL.Load(),
		EvictedExpired:  c.stats.evictedExpired.Load(),
		Degraded:        c.stats.degraded.Load(),
	}
}

// Sweep removes entries past their hard TTL or token expiry and returns how
// many were removed.
func (c *Cache) Sweep() int {
	if c.closed.Load() {
		return 0
	}
	type eviction struct {
		identity string
		reason   EvictReason
	}
	var removed []eviction

	for _, s := range c.shards {
		s.mu.Lock()
		now := c.cfg.Now()
		for identity, e := range s.entries {
			switch {
			case e.IsExpired(now):
				s.remove(identity)
				removed = append(removed, eviction{identity, EvictExpired})
			case c.hardExpired(e, now):
				s.remove(identity)
				removed = append(removed, eviction{identity, EvictTTL})
			}
		}
		s.mu.Unlock()
	}

	for _, r := range removed {
		if r.reason == EvictTTL {
			c.stats.evictedTTL.Add(1)
		} else {
			c.stats.evictedExpired.Add(1)
		}
		c.notifyEvict(r.identity, r.reason)
	}
	if len(removed) > 0 {
		c.log.Debug().Int("removed", len(removed)).Msg("swept cached tokens")
	}
	return len(removed)
}

// Close stops the sweeper and drops every entry. Later operations degrade as
// described on each method. Close is idempotent.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stop)
		c.wg.Wait()
		for _, s := range c.shards {
			s.mu.Lock()
			s.reset()
			s.mu.Unlock()
		}
	})
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stop:
			return
		}
	}
}

// stateLocked classifies the identity's entry. An entry past its hard TTL
// whose token has not yet expired is dropped and reported absent.
func (c *Cache) stateLocked(s *shard, identity string, now time.Time) State {
	e, ok := s.entries[identity]
	if !ok {
		return StateAbsent
	}
	if !e.IsExpired(now) && c.hardExpired(e, now) {
		s.remove(identity)
		c.stats.evictedTTL.Add(1)
		c.notifyEvict(identity, EvictTTL)
		return StateAbsent
	}
	return e.Classify(now, c.cfg.RefreshBuffer)
}

func (c *Cache) issueDetached(log *zerolog.Logger, identity string, claims map[string]any) (Result, error) {
	tok, err := c.issuer.Issue(identity, claims)
	if err != nil {
		return Result{}, err
	}
	c.stats.degraded.Add(1)
	c.stats.issued.Add(1)
	log.Error().Err(ErrCacheUnavailable).Str("identity", identity).Msg("cache unavailable, issued uncached token")
	return Result{
		Entry: Entry{
			Token:     tok.Encoded,
			Subject:   tok.Subject,
			TokenID:   tok.ID,
			CreatedAt: c.cfg.Now(),
			IssuedAt:  tok.IssuedAt,
			ExpiresAt: tok.ExpiresAt,
		},
		Previous: StateAbsent,
	}, nil
}

func (c *Cache) hardExpired(e *Entry, now time.Time) bool {
	return !now.Before(e.CreatedAt.Add(c.cfg.HardTTL))
}

func (c *Cache) shardFor(identity string) *shard {
	return c.shards[shardIndex(identity, len(c.shards))]
}

func (c *Cache) notifyEvict(identity string, reason EvictReason) {
	if c.cfg.OnEvict != nil {
		c.cfg.OnEvict(identity, reason)
	}
}

// logger prefers a request-scoped logger attached to ctx.
func (c *Cache) logger(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return &c.log
}
