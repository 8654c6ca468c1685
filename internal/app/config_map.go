package app

import (
	"fmt"
	"strings"
	"time"

	"triggerd/internal/api"
	"triggerd/internal/config"
	"triggerd/internal/dispatch"
	"triggerd/internal/storage"
)

func parseDurationField(path, raw string) (time.Duration, error) {
	return config.ParseDurationField(path, raw)
}

func parseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	return config.ParseDurationOrDefault(path, raw, def)
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := parseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapAPIConfig(cfg *config.Config) (api.Config, error) {
	if cfg == nil {
		return api.Config{}, nil
	}
	rt, err := parseDurationField("api.read_timeout", cfg.API.ReadTimeout)
	if err != nil {
		return api.Config{}, err
	}
	wt, err := parseDurationField("api.write_timeout", cfg.API.WriteTimeout)
	if err != nil {
		return api.Config{}, err
	}
	it, err := parseDurationField("api.idle_timeout", cfg.API.IdleTimeout)
	if err != nil {
		return api.Config{}, err
	}
	return api.Config{
		Enabled:       cfg.API.Enabled,
		Addr:          strings.TrimSpace(cfg.API.Addr),
		Token:         strings.TrimSpace(cfg.API.Token),
		AllowInsecure: cfg.API.AllowInsecure,
		ReadTimeout:   rt,
		WriteTimeout:  wt,
		IdleTimeout:   it,
	}, nil
}

// notifySettings is the resolved form of config.NotifyConfig.
type notifySettings struct {
	baseURL        string
	requestTimeout time.Duration
	resetDelay     time.Duration
}

func mapNotifyConfig(cfg *config.Config) (notifySettings, error) {
	if cfg == nil {
		return notifySettings{}, fmt.Errorf("config required")
	}
	rt, err := parseDurationOrDefault("notify.request_timeout", cfg.Notify.RequestTimeout, dispatch.DefaultRequestTimeout)
	if err != nil {
		return notifySettings{}, err
	}
	rd, err := parseDurationOrDefault("notify.reset_delay", cfg.Notify.ResetDelay, dispatch.DefaultResetDelay)
	if err != nil {
		return notifySettings{}, err
	}
	return notifySettings{
		baseURL:        strings.TrimSpace(cfg.Notify.BaseURL),
		requestTimeout: rt,
		resetDelay:     rd,
	}, nil
}
