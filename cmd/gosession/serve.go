package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/credentials"
	"github.com/MrEthical07/goSession/internal/httpapi"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
)

type serveFlags struct {
	addr              string
	secret            string
	validity          time.Duration
	refreshBuffer     time.Duration
	hardTTL           time.Duration
	maxEntries        int
	mode              string
	directory         string
	usersFile         string
	redisAddr         string
	redisPrefix       string
	throttle          bool
	throttleMax       int
	throttleCooldown  time.Duration
	auditLog          string
	metrics           bool
	latencyHistograms bool
	trustForwardedFor bool
	shutdownTimeout   time.Duration
}

func newServeCmd(lf *logFlags) *cobra.Command {
	sf := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP token service",
		Long: `Run the HTTP token service.

The user directory is selected with --directory:

  memory     built-in demo users (john, asraf, admin)
  file       JSON file given by --users-file, reloaded on change
  redis      user hashes in the Redis at --redis-addr
  miniredis  an embedded Redis seeded with the demo users`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd.ErrOrStderr(), lf, sf)
		},
	}

	f := cmd.Flags()
	f.StringVar(&sf.addr, "addr", ":8080", "listen address")
	f.StringVar(&sf.secret, "secret", "", "base64 HMAC signing secret (at least 32 bytes decoded)")
	f.DurationVar(&sf.validity, "validity", 24*time.Hour, "token validity")
	f.DurationVar(&sf.refreshBuffer, "refresh-buffer", 5*time.Minute, "replace cached tokens this close to expiry")
	f.DurationVar(&sf.hardTTL, "hard-ttl", 0, "maximum time a token stays cached (0 = validity)")
	f.IntVar(&sf.maxEntries, "max-entries", 10000, "maximum cached identities")
	f.StringVar(&sf.mode, "mode", "jwt_only", "validation mode of guarded routes (jwt_only or strict)")
	f.StringVar(&sf.directory, "directory", "memory", "user directory backend (memory, file, redis, miniredis)")
	f.StringVar(&sf.usersFile, "users-file", "", "users JSON file for --directory=file")
	f.StringVar(&sf.redisAddr, "redis-addr", "", "comma separated Redis addresses")
	f.StringVar(&sf.redisPrefix, "redis-prefix", credentials.DefaultRedisPrefix, "Redis key prefix")
	f.BoolVar(&sf.throttle, "throttle", false, "throttle failed logins (needs Redis)")
	f.IntVar(&sf.throttleMax, "throttle-max", 5, "failed logins allowed per cooldown window")
	f.DurationVar(&sf.throttleCooldown, "throttle-cooldown", 15*time.Minute, "failed login window")
	f.StringVar(&sf.auditLog, "audit-log", "", "write audit events as JSON lines to this file (- for stdout)")
	f.BoolVar(&sf.metrics, "metrics", true, "serve Prometheus metrics at /metrics")
	f.BoolVar(&sf.latencyHistograms, "latency-histograms", false, "record verification latency")
	f.BoolVar(&sf.trustForwardedFor, "trust-forwarded-for", false, "take client IPs from X-Forwarded-For")
	f.DurationVar(&sf.shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	return cmd
}

func runServe(ctx context.Context, stderr io.Writer, lf *logFlags, sf *serveFlags) error {
	logger, logCloser, err := lf.build(stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := sf.engineConfig(logger)
	if err != nil {
		return err
	}

	backend, err := openBackend(ctx, sf, logger)
	if err != nil {
		return err
	}
	defer backend.close()

	b := goSession.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithIdentityResolver(backend.resolver)
	if backend.redis != nil {
		b = b.WithRedis(backend.redis)
	}

	var auditOut io.WriteCloser
	if sf.auditLog != "" {
		auditOut, err = openAuditLog(sf.auditLog)
		if err != nil {
			return err
		}
		defer auditOut.Close()
		b = b.WithAuditSink(goSession.NewJSONWriterSink(auditOut))
	}

	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	opts := httpapi.Options{
		Logger:            &logger,
		TrustForwardedFor: sf.trustForwardedFor,
	}
	if sf.metrics {
		opts.Metrics = prometheus.NewPrometheusExporter(engine).Handler()
	}

	srv := &http.Server{
		Addr:              sf.addr,
		Handler:           httpapi.New(engine, opts).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", sf.addr).
			Str("directory", sf.directory).
			Str("mode", cfg.ValidationMode.String()).
			Dur("validity", cfg.JWT.Validity).
			Bool("throttle", cfg.Throttle.Enabled).
			Msg("gosession listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), sf.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (sf *serveFlags) engineConfig(logger zerolog.Logger) (goSession.Config, error) {
	cfg := goSession.DefaultConfig()

	if sf.secret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return cfg, fmt.Errorf("generate secret: %w", err)
		}
		logger.Warn().Msg("no --secret given; using a random secret, tokens will not survive a restart")
		cfg.JWT.Secret = secret
	} else {
		secret, err := jwt.DecodeSecret(sf.secret)
		if err != nil {
			return cfg, err
		}
		cfg.JWT.Secret = secret
	}

	mode, err := goSession.ParseValidationMode(sf.mode)
	if err != nil {
		return cfg, err
	}

	cfg.JWT.Validity = sf.validity
	cfg.Cache.RefreshBuffer = sf.refreshBuffer
	cfg.Cache.HardTTL = sf.hardTTL
	cfg.Cache.MaxEntries = sf.maxEntries
	cfg.ValidationMode = mode
	cfg.Metrics.EnableLatencyHistograms = sf.latencyHistograms
	cfg.Throttle.Enabled = sf.throttle
	cfg.Throttle.MaxAttempts = sf.throttleMax
	cfg.Throttle.Cooldown = sf.throttleCooldown
	cfg.Throttle.KeyPrefix = sf.redisPrefix
	if sf.auditLog != "" {
		cfg.Audit.Enabled = true
	}
	return cfg, cfg.Validate()
}

// backend is an opened user directory plus the resources behind it.
type backend struct {
	resolver goSession.IdentityResolver
	redis    redis.UniversalClient
	closers  []func() error
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

func openBackend(ctx context.Context, sf *serveFlags, logger zerolog.Logger) (_ *backend, err error) {
	b := &backend{}
	defer func() {
		if err != nil {
			b.close()
		}
	}()

	// Redis is also the throttle store, so connect whenever an address is given.
	if sf.redisAddr != "" {
		b.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: strings.Split(sf.redisAddr, ","),
		})
		b.closers = append(b.closers, b.redis.Close)
	}

	switch sf.directory {
	case "memory":
		users, err := credentials.DemoUsers(nil)
		if err != nil {
			return nil, err
		}
		dir, err := credentials.NewMemoryDirectory(nil, users...)
		if err != nil {
			return nil, err
		}
		b.resolver = dir

	case "file":
		if sf.usersFile == "" {
			return nil, errors.New("--users-file is required for --directory=file")
		}
		dir, err := credentials.OpenFileDirectory(credentials.FileConfig{
			Path:   sf.usersFile,
			Logger: &logger,
		})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, dir.Close)
		b.resolver = dir

	case "miniredis":
		if b.redis != nil {
			return nil, errors.New("--redis-addr cannot be combined with --directory=miniredis")
		}
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		b.closers = append(b.closers, func() error { mr.Close(); return nil })
		b.redis = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		b.closers = append(b.closers, b.redis.Close)
		logger.Info().Str("addr", mr.Addr()).Msg("embedded redis started")

		dir, err := seedRedis(ctx, b.redis, sf.redisPrefix)
		if err != nil {
			return nil, err
		}
		b.resolver = dir

	case "redis":
		if b.redis == nil {
			return nil, errors.New("--redis-addr is required for --directory=redis")
		}
		dir, err := credentials.NewRedisDirectory(ctx, b.redis, sf.redisPrefix, nil)
		if err != nil {
			return nil, err
		}
		b.resolver = dir

	default:
		return nil, fmt.Errorf("unknown directory backend %q", sf.directory)
	}

	return b, nil
}

func seedRedis(ctx context.Context, client redis.UniversalClient, prefix string) (*credentials.RedisDirectory, error) {
	dir, err := credentials.NewRedisDirectory(ctx, client, prefix, nil)
	if err != nil {
		return nil, err
	}
	users, err := credentials.DemoUsers(nil)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if err := dir.Put(ctx, u); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	return dir, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func openAuditLog(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return f, nil
}
