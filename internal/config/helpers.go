package config

import (
	marketpkg "perpscan/pkg/market"
)

// MustLoadMarket loads etc/market.yaml from the project root and panics on
// error. It backs the CLI fallback path where the main configuration either
// failed to load or carries no market section.
func MustLoadMarket() *marketpkg.Config {
	return marketpkg.MustLoad()
}
