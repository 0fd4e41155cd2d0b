package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/zsiec/mediatime/internal/calc"
	"github.com/zsiec/mediatime/internal/config"
	"github.com/zsiec/mediatime/internal/health"
	"github.com/zsiec/mediatime/internal/logger"
	"github.com/zsiec/mediatime/internal/server"
	"github.com/zsiec/mediatime/internal/timeline"
	"github.com/zsiec/mediatime/pkg/mediatime"
	"github.com/zsiec/mediatime/pkg/version"
)

func main() {
	var (
		configPath  string
		showVersion bool
		evalLine    string
		rounding    string
		scale       uint32
	)

	flag.StringVar(&configPath, "config", "configs/default.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.StringVarP(&evalLine, "eval", "e", "", `Evaluate one expression and exit, e.g. "add 1/3 1/6"`)
	flag.StringVar(&rounding, "rounding", "", "Default rounding mode for rescale")
	flag.Uint32Var(&scale, "scale", 0, "Default time scale for rescale")
	flag.Parse()

	// Show version and exit if requested
	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	if evalLine != "" {
		opts, err := evaluatorOptions(calc.DefaultOptions(), scale, rounding)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
		if err := evaluate(os.Stdout, opts, evalLine); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if flag.CommandLine.Changed("scale") {
		cfg.Timeline.DefaultScale = scale
	}
	if flag.CommandLine.Changed("rounding") {
		cfg.Timeline.DefaultRounding = rounding
	}

	// Initialize logger
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithField("version", version.GetInfo().Short()).Info("Starting mediatime server")
	log.WithField("config_path", configPath).Debug("Configuration loaded")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("Server error")
		os.Exit(1)
	}
	log.Info("Server shutdown complete")
}

// run wires the services and serves until SIGINT or SIGTERM.
func run(cfg *config.Config, log *logrus.Entry) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base := logger.NewLogrusAdapter(log)
	healthMgr := health.NewManager(base)
	healthMgr.Register(health.ArithmeticChecker{})

	store, closeStore, err := newStore(ctx, cfg, base, healthMgr)
	if err != nil {
		return err
	}
	defer closeStore()
	healthMgr.Register(health.NewStoreChecker(store))

	opts, err := evaluatorOptions(calc.DefaultOptions(), cfg.Timeline.DefaultScale, cfg.Timeline.DefaultRounding)
	if err != nil {
		return err
	}

	srv := server.New(cfg, log, server.Dependencies{
		Evaluator: calc.NewEvaluator(opts, base),
		Timelines: timeline.NewService(store, timeline.Options{
			MaxBufferedRanges: cfg.Timeline.MaxBufferedRanges,
		}, base),
		Health: healthMgr,
	})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig).Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	return srv.Start(ctx)
}

// newStore builds the configured timeline store. The Redis store also gets
// a Redis health check.
func newStore(ctx context.Context, cfg *config.Config, log logger.Logger, healthMgr *health.Manager) (timeline.Store, func(), error) {
	if cfg.Timeline.Store != config.StoreRedis {
		return timeline.NewMemoryStore(cfg.Timeline.TTL, cfg.Timeline.CleanupInterval), func() {}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Redis.Addresses,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.WithField("addresses", cfg.Redis.Addresses).Info("Connected to Redis successfully")

	healthMgr.Register(health.NewRedisChecker(client))

	closeFn := func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Error("Failed to close Redis connection")
		}
	}
	return timeline.NewRedisStore(client, cfg.Timeline.KeyPrefix, cfg.Timeline.TTL, log), closeFn, nil
}

// evaluatorOptions overrides the defaults in opts with a non-zero scale and a
// non-empty rounding mode name.
func evaluatorOptions(opts calc.Options, scale uint32, rounding string) (calc.Options, error) {
	if scale != 0 {
		opts.DefaultScale = scale
	}
	if rounding != "" {
		mode, err := mediatime.ParseRoundingMode(rounding)
		if err != nil {
			return opts, err
		}
		opts.DefaultRounding = mode
	}
	return opts, nil
}

// evaluate runs one calc line and writes the indented JSON result to out.
func evaluate(out io.Writer, opts calc.Options, line string) error {
	result, err := calc.NewEvaluator(opts, logger.NewNullLogger()).EvaluateLine(line)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
