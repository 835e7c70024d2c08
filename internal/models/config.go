package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Keeper     KeeperConfig
	Listener   ListenerConfig
	Http       HttpConfig
	Asset      AssetConfig
	Transfer   TransferConfig
	Formance   FormanceConfig
	Parameters ParametersConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// KeeperConfig holds queue keeper settings
type KeeperConfig struct {
	PollingInterval   time.Duration
	MaxItemsPerTick   int
	RedisURL          string
	LockKey           string
	LockTTL           time.Duration
	ReconcileSchedule string
	MetricsAddr       string
}

// ListenerConfig holds bounce listener settings
type ListenerConfig struct {
	LookbackWindow  time.Duration
	PollingInterval time.Duration
	CleanupInterval time.Duration
}

// HttpConfig holds API server settings
type HttpConfig struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// AssetConfig describes the single asset held by the pool
type AssetConfig struct {
	Symbol   string
	Network  string
	Decimals int32
}

// TransferConfig selects how payouts leave the pool
type TransferConfig struct {
	Backend            string
	PortfolioId        string
	WalletId           string
	EmergencyRecipient string
}

// FormanceConfig holds the optional history mirror settings
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// Enabled reports whether the Formance mirror was configured
func (f FormanceConfig) Enabled() bool {
	return f.StackURL != "" && f.ClientID != "" && f.ClientSecret != ""
}

// ParametersConfig points at the bootstrap parameters file
type ParametersConfig struct {
	File string
}

// FormatUnits renders an amount of atomic units in whole asset units
func (a AssetConfig) FormatUnits(atomic decimal.Decimal) string {
	return atomic.Shift(-a.Decimals).String()
}

// ParseUnits converts an amount written in asset units to atomic units.
// Amounts with more precision than the asset supports are rejected.
func (a AssetConfig) ParseUnits(value string) (decimal.Decimal, error) {
	units, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	atomic := units.Shift(a.Decimals)
	if !atomic.IsInteger() {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", value, a.Decimals)
	}
	return atomic, nil
}
