package cache

import (
	"strings"
	"time"

	"perpscan/internal/config"
)

// Namespace is the Redis key prefix for the perpscan application.
const Namespace = "perpscan"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled applies a multiplier to a TTL class, useful for half/double TTL variants.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Price & Symbol Keys ----------------------------------------------------

// PriceLatestKey returns the default latest price key without exchange scoping.
func PriceLatestKey(symbol string) string {
	return formatKey("price", "latest", symbol)
}

// PriceLatestByExchangeKey returns the latest price key scoped by exchange.
func PriceLatestByExchangeKey(exchange, symbol string) string {
	return formatKey("price", "latest", exchange, symbol)
}

// PricesKey holds the aggregated prices map payload, one field per
// exchange:symbol pair.
func PricesKey() string {
	return formatKey("prices")
}

// SymbolsKey stores the listed symbol universe for an exchange.
func SymbolsKey(exchange string) string {
	return formatKey("symbols", exchange)
}

// --- Report & Snapshot Keys -------------------------------------------------

// ReportKey stores the latest enriched document per symbol and interval.
func ReportKey(exchange, symbol, interval string) string {
	return formatKey("report", exchange, symbol, interval)
}

// SnapshotKey stores the latest ranked market snapshot for an exchange.
func SnapshotKey(exchange string) string {
	return formatKey("snapshot", exchange)
}

// --- TTL Helpers ------------------------------------------------------------

// PriceTTL returns short-lived TTL for individual price keys.
func PriceTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// PricesTTL returns the TTL for the bundled prices map.
func PricesTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// SymbolsTTL returns the TTL for listed symbol universes, which change
// rarely compared to anything price-derived.
func SymbolsTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLLong, 2) // target ~600s when long=300s
}

// ReportTTL returns the TTL for per-symbol document payloads.
func ReportTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// SnapshotTTL returns the TTL for ranked snapshot payloads.
func SnapshotTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// FormatCacheKey is exported for dynamic key construction when patterns
// are not covered by helpers.
func FormatCacheKey(parts ...string) string {
	return formatKey(parts...)
}
