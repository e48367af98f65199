package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DatasetRef names a dataset and where to load it from: a local NetCDF
// path or a remote consolidated zarr store URL.
type DatasetRef struct {
	Name     string
	Location string
}

type AppConfig struct {
	// Local NetCDF datasets, loaded once at startup.
	Files []DatasetRef

	// Remote zarr datasets, loaded at startup and refreshed periodically.
	ZarrStores []DatasetRef

	// RefreshInterval controls how often remote datasets are reloaded.
	RefreshInterval time.Duration

	// HTTPTimeout bounds outbound store object fetches.
	HTTPTimeout time.Duration

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	files, err := parseDatasetRefs(os.Getenv("DATASET_FILES"))
	if err != nil {
		return nil, fmt.Errorf("invalid DATASET_FILES: %w", err)
	}
	cfg.Files = files

	stores, err := parseDatasetRefs(os.Getenv("DATASET_ZARR_STORES"))
	if err != nil {
		return nil, fmt.Errorf("invalid DATASET_ZARR_STORES: %w", err)
	}
	cfg.ZarrStores = stores

	if len(cfg.Files) == 0 && len(cfg.ZarrStores) == 0 {
		return nil, fmt.Errorf("no datasets configured; set DATASET_FILES or DATASET_ZARR_STORES")
	}

	// Remote refresh interval: default hourly.
	refreshStr := getenvDefault("REFRESH_INTERVAL", "1h")
	refresh, err := time.ParseDuration(refreshStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = refresh

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

// parseDatasetRefs parses "name=location,name2=location2" lists.
func parseDatasetRefs(s string) ([]DatasetRef, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var refs []DatasetRef
	for _, entry := range strings.Split(s, ",") {
		name, location, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || name == "" || location == "" {
			return nil, fmt.Errorf("entry %q must be name=location", entry)
		}
		refs = append(refs, DatasetRef{Name: name, Location: location})
	}
	return refs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
