// Command gosession-loadtest drives an in-process Engine with concurrent
// GetOrCreate, Authenticate, Invalidate and Login calls and reports latency
// percentiles per phase. The storm phase fails the run if concurrent
// callers for one identity ever observe different tokens.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/credentials"
	"github.com/MrEthical07/goSession/password"
)

type options struct {
	identities  int
	concurrency int
	ops         int
	stormSize   int
	users       int
	redisAddr   string
}

func main() {
	var o options
	flag.IntVar(&o.identities, "identities", 10000, "number of distinct identities")
	flag.IntVar(&o.concurrency, "concurrency", 256, "number of concurrent workers")
	flag.IntVar(&o.ops, "ops", 200000, "operations per phase")
	flag.IntVar(&o.stormSize, "storm", 64, "concurrent callers per identity in the storm phase")
	flag.IntVar(&o.users, "users", 200, "directory users for the login phase")
	flag.StringVar(&o.redisAddr, "redis-addr", "", "redis for the login throttle; if empty, REDIS_ADDR env or miniredis is used")
	flag.Parse()

	if o.identities <= 0 || o.concurrency <= 0 || o.ops <= 0 || o.stormSize <= 0 || o.users <= 0 {
		fmt.Fprintln(os.Stderr, "identities, concurrency, ops, storm and users must be > 0")
		os.Exit(2)
	}

	if err := run(context.Background(), o); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	client, cleanup, err := redisClient(o.redisAddr)
	if err != nil {
		return err
	}
	defer cleanup()

	dir, err := seedDirectory(o.users)
	if err != nil {
		return err
	}

	cfg := goSession.DefaultConfig()
	cfg.JWT.Secret = []byte("loadtest-secret-loadtest-secret-")
	cfg.Cache.MaxEntries = o.identities * 2
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Throttle.Enabled = true
	cfg.Throttle.MaxAttempts = 1 << 20
	cfg.Throttle.KeyPrefix = "gslt:"
	cfg.ValidationMode = goSession.ModeStrict

	engine, err := goSession.New().
		WithConfig(cfg).
		WithIdentityResolver(dir).
		WithRedis(client).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	ids := make([]string, o.identities)
	for i := range ids {
		ids[i] = "user-" + strconv.Itoa(i)
	}

	storm, err := runStorm(ctx, engine, ids, o.stormSize)
	if err != nil {
		return err
	}

	tokens := make([]string, len(ids))
	for i, id := range ids {
		res, err := engine.GetOrCreate(ctx, id)
		if err != nil {
			return fmt.Errorf("seed %s: %w", id, err)
		}
		tokens[i] = res.Token
	}

	getStats, err := runPhase(ctx, o, func(r *rand.Rand) error {
		_, err := engine.GetOrCreate(ctx, ids[r.Intn(len(ids))])
		return err
	})
	if err != nil {
		return err
	}

	authStats, err := runPhase(ctx, o, func(r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))], goSession.ModeJWTOnly)
		return err
	})
	if err != nil {
		return err
	}

	churnStats, err := runPhase(ctx, o, func(r *rand.Rand) error {
		id := ids[r.Intn(len(ids))]
		if r.Intn(4) == 0 {
			engine.Invalidate(ctx, id)
			return nil
		}
		_, err := engine.GetOrCreate(ctx, id)
		return err
	})
	if err != nil {
		return err
	}

	loginOps := o
	loginOps.ops = o.ops / 10
	if loginOps.ops == 0 {
		loginOps.ops = 1
	}
	loginStats, err := runPhase(ctx, loginOps, func(r *rand.Rand) error {
		n := r.Intn(o.users)
		_, err := engine.Login(ctx, goSession.Credentials{
			UserID:   "login-" + strconv.Itoa(n),
			Password: "password-" + strconv.Itoa(n),
		})
		return err
	})
	if err != nil {
		return err
	}

	fmt.Println("---- results ----")
	printStats("storm", storm)
	printStats("get_or_create", getStats)
	printStats("authenticate", authStats)
	printStats("churn", churnStats)
	printStats("login", loginStats)

	stats := engine.CacheStats()
	fmt.Printf("cache: entries=%d hits=%d misses=%d issued=%d invalidated=%d evicted_capacity=%d\n",
		stats.Entries, stats.Hits, stats.Misses, stats.Issued, stats.Invalidated, stats.EvictedCapacity)
	return nil
}

func redisClient(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seedDirectory(n int) (*credentials.MemoryDirectory, error) {
	h, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	users := make([]credentials.User, 0, n)
	for i := 0; i < n; i++ {
		hash, err := h.Hash("password-" + strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		users = append(users, credentials.User{
			ID:           "login-" + strconv.Itoa(i),
			PasswordHash: hash,
			Roles:        []string{"USER"},
		})
	}
	return credentials.NewMemoryDirectory(h, users...)
}

// runStorm sends stormSize simultaneous GetOrCreate calls for each of a
// sample of identities and checks that every caller got the same token.
func runStorm(ctx context.Context, engine *goSession.Engine, ids []string, stormSize int) (phaseStats, error) {
	sample := ids
	if len(sample) > 256 {
		sample = sample[:256]
	}

	var (
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, len(sample)*stormSize)
	)
	start := time.Now()
	for _, id := range sample {
		engine.Invalidate(ctx, id)

		tokens := make([]string, stormSize)
		g, gctx := errgroup.WithContext(ctx)
		gate := make(chan struct{})
		for i := 0; i < stormSize; i++ {
			g.Go(func() error {
				<-gate
				t0 := time.Now()
				res, err := engine.GetOrCreate(gctx, id)
				d := time.Since(t0)
				if err != nil {
					return err
				}
				tokens[i] = res.Token
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
				return nil
			})
		}
		close(gate)
		if err := g.Wait(); err != nil {
			return phaseStats{}, fmt.Errorf("storm %s: %w", id, err)
		}
		for _, tok := range tokens[1:] {
			if tok != tokens[0] {
				return phaseStats{}, fmt.Errorf("storm %s: concurrent callers observed different tokens", id)
			}
		}
	}
	return computeStats(time.Since(start), latencies, 0), nil
}

func runPhase(ctx context.Context, o options, op func(r *rand.Rand) error) (phaseStats, error) {
	var (
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, o.ops)
	)

	g, _ := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < o.concurrency; w++ {
		seed := time.Now().UnixNano() + int64(w)*7919
		g.Go(func() error {
			r := rand.New(rand.NewSource(seed))
			local := make([]time.Duration, 0, o.ops/o.concurrency+1)
			for {
				if int(atomic.AddInt64(&cursor, 1)) > o.ops {
					break
				}
				t0 := time.Now()
				err := op(r)
				local = append(local, time.Since(t0))
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return computeStats(time.Since(start), latencies, failures), nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
