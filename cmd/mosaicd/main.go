package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/star/mosaicplanner/internal/api"
	"github.com/star/mosaicplanner/internal/auth"
	"github.com/star/mosaicplanner/internal/cache"
	"github.com/star/mosaicplanner/internal/equipment"
	"github.com/star/mosaicplanner/internal/health"
	"github.com/star/mosaicplanner/internal/planner"
	"github.com/star/mosaicplanner/internal/settings"
	"github.com/star/mosaicplanner/internal/stream"
	"github.com/star/mosaicplanner/internal/transform"
	"github.com/star/mosaicplanner/web"
)

// pathsConfig locates the files the service reads and writes.
type pathsConfig struct {
	SettingsPath  string
	EquipmentPath string
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	apiCfg := api.Config{Addr: os.Getenv("MOSAIC_HTTP_ADDR")}
	if apiCfg.Addr == "" {
		apiCfg.Addr = ":8080"
	}
	if v := os.Getenv("MOSAIC_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid MOSAIC_TRUST_PROXY value, defaulting to false", "value", v)
		}
		apiCfg.TrustProxy = trust
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	ready := health.NewReadiness()
	paths := loadPathsConfig(logger)

	s, err := settings.Load(paths.SettingsPath)
	if err != nil {
		logger.Error("failed to load settings", "error", err)
		os.Exit(1)
	}

	cat, sel, err := loadEquipment(logger, paths.EquipmentPath)
	if err != nil {
		logger.Error("failed to load equipment", "error", err)
		os.Exit(1)
	}

	p := planner.New(s, cat, sel, loadPlannerConfig(logger), logger)
	if fov, ok := p.FOV(); ok {
		logger.Info("equipment selected",
			"ccd", sel.CCD,
			"telescope", sel.Telescope,
			"lens", sel.Lens,
			"fov_x_deg", fov.XDeg,
			"fov_y_deg", fov.YDeg,
			"frame", p.Frame().String(),
		)
	} else {
		logger.Warn("no usable equipment selected, mosaic will stay empty", "selection", sel)
	}

	// Persist settings after every accepted change.
	unsubscribe := p.Subscribe(planner.SaveOnChange(paths.SettingsPath, logger))
	defer unsubscribe()

	streamCfg := loadStreamConfig(logger)
	streamCfg.TrustProxy = apiCfg.TrustProxy
	streamHandler := stream.NewHandler(p, streamCfg, logger)
	apiCfg.Site = streamCfg.Site

	var webContent fs.FS = web.Content
	srv := api.NewServer(apiCfg, logger, authCfg, p, streamHandler, ready, webContent)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SIGHUP reloads the equipment catalog from disk.
	go func() {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-hup:
				cat, sel, err := loadEquipment(logger, paths.EquipmentPath)
				if err != nil {
					logger.Warn("equipment reload failed, keeping current catalog", "error", err)
					continue
				}
				if err := p.SetCatalog(cat, sel); err != nil {
					logger.Warn("equipment reload rejected", "error", err)
					continue
				}
				logger.Info("equipment reloaded",
					"ccds", len(cat.CCDs),
					"telescopes", len(cat.Telescopes),
					"lenses", len(cat.Lenses),
				)
			case <-ctx.Done():
				return
			}
		}
	}()

	ready.SetReady()

	go func() {
		logger.Info("starting server",
			"addr", apiCfg.Addr,
			"auth_enabled", authCfg.Enabled,
			"mosaic_enabled", p.Enabled(),
			"settings_path", paths.SettingsPath,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")
	ready.SetNotReady("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// loadEquipment reads the catalog. A missing file starts the service with an
// empty catalog.
func loadEquipment(logger *slog.Logger, path string) (*equipment.Catalog, equipment.Selection, error) {
	cat, sel, err := equipment.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("no equipment file found, starting with an empty catalog", "path", path)
		return &equipment.Catalog{}, equipment.DefaultSelection(), nil
	}
	if err != nil {
		return nil, equipment.Selection{}, err
	}
	return cat, sel, nil
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("MOSAIC_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("MOSAIC_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("MOSAIC_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("MOSAIC_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadPathsConfig(logger *slog.Logger) pathsConfig {
	cfg := pathsConfig{
		SettingsPath:  "mosaicplanner.toml",
		EquipmentPath: "equipment.toml",
	}

	if v := os.Getenv("MOSAIC_SETTINGS_PATH"); v != "" {
		cfg.SettingsPath = v
	}
	if v := os.Getenv("MOSAIC_EQUIPMENT_PATH"); v != "" {
		cfg.EquipmentPath = v
	}

	logger.Info("paths config",
		"settings_path", cfg.SettingsPath,
		"equipment_path", cfg.EquipmentPath,
	)

	return cfg
}

func loadPlannerConfig(logger *slog.Logger) planner.Config {
	cfg := planner.Config{
		OutlineWorkers: runtime.NumCPU(),
		Cache:          cache.Config{MaxEntries: cache.DefaultMaxEntries},
	}

	if v := os.Getenv("MOSAIC_OUTLINE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid MOSAIC_OUTLINE_WORKERS value, using default", "value", v, "default", cfg.OutlineWorkers)
		} else {
			cfg.OutlineWorkers = n
		}
	}

	if v := os.Getenv("MOSAIC_LAYOUT_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid MOSAIC_LAYOUT_CACHE_SIZE value, using default", "value", v, "default", cache.DefaultMaxEntries)
		} else {
			cfg.Cache.MaxEntries = n
		}
	}

	logger.Info("planner config",
		"outline_workers", cfg.OutlineWorkers,
		"layout_cache_size", cfg.Cache.MaxEntries,
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		MaxTotal:           1000,
		KeepaliveInterval:  30 * time.Second,
		DefaultInterval:    5 * time.Second,
	}

	if v := os.Getenv("MOSAIC_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid MOSAIC_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("MOSAIC_STREAM_MAX_TOTAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid MOSAIC_STREAM_MAX_TOTAL value, using default", "value", v, "default", 1000)
		} else {
			cfg.MaxTotal = n
		}
	}

	if v := os.Getenv("MOSAIC_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid MOSAIC_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("MOSAIC_STREAM_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			logger.Warn("invalid MOSAIC_STREAM_INTERVAL value, using default", "value", v, "default", 5)
		} else {
			cfg.DefaultInterval = time.Duration(n) * time.Second
		}
	}

	latDeg, lonDeg := 0.0, 0.0
	if v := os.Getenv("MOSAIC_SITE_LAT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < -90 || f > 90 {
			logger.Warn("invalid MOSAIC_SITE_LAT value, using default", "value", v, "default", 0)
		} else {
			latDeg = f
		}
	}
	if v := os.Getenv("MOSAIC_SITE_LON"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < -180 || f > 360 {
			logger.Warn("invalid MOSAIC_SITE_LON value, using default", "value", v, "default", 0)
		} else {
			lonDeg = f
		}
	}
	cfg.Site = transform.NewSite(latDeg, lonDeg)

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"default_interval_seconds", cfg.DefaultInterval.Seconds(),
		"site_lat_deg", latDeg,
		"site_lon_deg", lonDeg,
	)

	return cfg
}
