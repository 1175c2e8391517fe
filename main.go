package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"addrscope/pkg/config"
	"addrscope/pkg/gateway"
	"addrscope/pkg/navigator"
	"addrscope/pkg/render"
	"addrscope/pkg/server"
	"addrscope/pkg/session"
	"addrscope/pkg/tui"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Version should be set during build
var Version = "dev"

func main() {
	testFlag := flag.Bool("t", false, "Test configuration and exit")
	testLongFlag := flag.Bool("test", false, "Test configuration and exit")
	jsonFlag := flag.Bool("json", false, "Output test results as JSON")
	dryRunFlag := flag.Bool("dry-run", false, "Perform a trial run with no changes made")
	configFlag := flag.String("config", "", "Path to configuration file")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	serverFlag := flag.Bool("server", false, "Run in headless server mode")
	portFlag := flag.Int("port", 8080, "Port for API server")
	queryFlag := flag.String("query", "", "Look up one address, print the result and exit")
	initFlag := flag.Bool("init", false, "Write the default configuration and exit")
	restoreFlag := flag.Bool("restore", false, "Restore the most recent configuration backup and exit")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("addrscope version %s\n", Version)
		os.Exit(0)
	}

	// .env is optional
	_ = godotenv.Load()

	cfgInput := *configFlag
	if cfgInput == "" && len(flag.Args()) > 0 {
		cfgInput = flag.Args()[0]
	}
	path, err := config.GetConfigPath(cfgInput)
	if err != nil {
		fmt.Printf("Error determining config path: %v\n", err)
		os.Exit(1)
	}

	if *restoreFlag {
		if err := config.RestoreLastBackup(path); err != nil {
			fmt.Printf("Error restoring backup of %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Restored %s from the latest backup.\n", path)
		os.Exit(0)
	}

	if *initFlag {
		def := config.Config{Chains: config.DefaultChains(), Global: config.DefaultGlobalConfig()}
		if err := config.SaveConfig(def, path); err != nil {
			fmt.Printf("Error writing default config to %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", path)
		os.Exit(0)
	}

	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		fmt.Printf("Error loading config from %s: %v\n", path, err)
		os.Exit(1)
	}

	if *testFlag || *testLongFlag {
		os.Exit(runConfigTest(cfg, path, *jsonFlag, *dryRunFlag))
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Printf("Run with -t to check the configuration at %s.\n", path)
		os.Exit(1)
	}

	interactive := !*serverFlag && *queryFlag == ""
	logger, err := newLogger(*debugFlag, interactive)
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	store := newStore(cfg, logger)
	ctrl := navigator.New(gateway.NewSet(cfg, logger), store, logger)
	ctrl.SetPageSize(cfg.Global.PageSize)
	renderer := render.New(cfg.Global.TokenDecimals)

	if *queryFlag != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 4*cfg.Global.RequestTimeout())
		defer cancel()
		p, err := ctrl.Submit(ctx, "cli", *queryFlag)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(renderer.Text(p))
		return
	}

	srv := server.NewServer(ctrl, renderer, logger)
	if *serverFlag {
		logger.Info("running in server mode", zap.Int("port", *portFlag), zap.String("config", path))
		if err := srv.Start(*portFlag); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
		return
	}

	go func() {
		if err := srv.Start(*portFlag); err != nil {
			logger.Warn("API server unavailable", zap.Error(err))
		}
	}()

	initial := ""
	if len(flag.Args()) > 1 {
		initial = flag.Args()[1]
	}
	if err := tui.Start(ctrl, cfg, renderer, initial, Version); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger keeps the terminal UI's screen clean: interactive runs log to a
// file, and only when debugging.
func newLogger(debug, interactive bool) (*zap.Logger, error) {
	if interactive {
		if !debug {
			return zap.NewNop(), nil
		}
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"addrscope.log"}
		cfg.ErrorOutputPaths = []string{"addrscope.log"}
		return cfg.Build()
	}
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newStore prefers Redis when configured and falls back to memory when it is
// unreachable.
func newStore(cfg config.Config, logger *zap.Logger) session.Store {
	ttl := cfg.Global.SessionTTL()
	if cfg.Global.RedisURL == "" {
		return session.NewMemoryStore(ttl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rs, err := session.NewRedisStore(ctx, cfg.Global.RedisURL, session.DefaultKeyPrefix, ttl)
	if err != nil {
		logger.Warn("redis unavailable, keeping sessions in memory", zap.Error(err))
		return session.NewMemoryStore(ttl)
	}
	logger.Info("sessions stored in redis", zap.String("prefix", session.DefaultKeyPrefix))
	return rs
}
