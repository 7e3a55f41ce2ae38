package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultEntityCacheTTL = time.Minute
)

// ErrMissingSettings is returned when a required setting is absent.
var ErrMissingSettings = errors.New("missing required OpenCTI configuration")

// Config is loaded once at process start and is read-only afterwards.
type Config struct {
	OpenCTI  OpenCTIConfig
	Gateway  GatewayConfig
	HTTPAddr string
	AuditDSN string
}

type OpenCTIConfig struct {
	BaseURL   string
	Token     string
	VerifySSL bool
	Timeout   time.Duration
	// EnrichmentConnectorID is empty when enrichment is disabled.
	EnrichmentConnectorID string
	RPS                   float64
	Burst                 int
}

type GatewayConfig struct {
	SingleFlight   bool
	EntityCacheMax int
	EntityCacheTTL time.Duration
}

// Load reads the given env files, or .env when present, and then the
// process environment. Variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	baseURL := get("OPENCTI_URL")
	token := get("OPENCTI_TOKEN")
	var missing []string
	if baseURL == "" {
		missing = append(missing, "OPENCTI_URL")
	}
	if token == "" {
		missing = append(missing, "OPENCTI_TOKEN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingSettings, strings.Join(missing, ", "))
	}

	timeout, err := parseSeconds("OPENCTI_TIMEOUT", get("OPENCTI_TIMEOUT"), defaultTimeout)
	if err != nil {
		return nil, err
	}
	rps, err := parseFloat("OPENCTI_RPS", get("OPENCTI_RPS"))
	if err != nil {
		return nil, err
	}
	burst, err := parseInt("OPENCTI_BURST", get("OPENCTI_BURST"))
	if err != nil {
		return nil, err
	}
	cacheMax, err := parseInt("CTIBRIDGE_ENTITY_CACHE_SIZE", get("CTIBRIDGE_ENTITY_CACHE_SIZE"))
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseSeconds("CTIBRIDGE_ENTITY_CACHE_TTL", get("CTIBRIDGE_ENTITY_CACHE_TTL"), defaultEntityCacheTTL)
	if err != nil {
		return nil, err
	}

	return &Config{
		OpenCTI: OpenCTIConfig{
			BaseURL:   strings.TrimRight(baseURL, "/"),
			Token:     token,
			VerifySSL: parseEnabled(get("OPENCTI_VERIFY_SSL")),
			Timeout:   timeout,
			EnrichmentConnectorID: firstNonEmpty(
				get("OPENCTI_ENRICHMENT_CONNECTOR_ID"),
				get("VIRUSTOTAL_CONNECTOR_ID"),
			),
			RPS:   rps,
			Burst: burst,
		},
		Gateway: GatewayConfig{
			SingleFlight:   parseFlag(get("CTIBRIDGE_SINGLEFLIGHT")),
			EntityCacheMax: cacheMax,
			EntityCacheTTL: cacheTTL,
		},
		HTTPAddr: get("CTIBRIDGE_HTTP_ADDR"),
		AuditDSN: get("CTIBRIDGE_AUDIT_DATABASE_URL"),
	}, nil
}

// EnrichmentEnabled reports whether a connector id was configured.
func (c OpenCTIConfig) EnrichmentEnabled() bool {
	return c.EnrichmentConnectorID != ""
}

// parseEnabled treats anything except an explicit "off" spelling as true.
func parseEnabled(raw string) bool {
	switch strings.ToLower(raw) {
	case "0", "false", "no", "off":
		return false
	}
	return true
}

func parseFlag(raw string) bool {
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return v
}

func parseSeconds(key, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be a positive number of seconds", key, raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func parseFloat(key, raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: must be a number", key, raw)
	}
	return v, nil
}

func parseInt(key, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: must be an integer", key, raw)
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
