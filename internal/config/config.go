package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord        DiscordConfig        `yaml:"discord"`
	Auction        AuctionConfig        `yaml:"auction"`
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	GuildID string `yaml:"guild_id"`
}

// AuctionConfig holds the bidding rules and timing parameters.
type AuctionConfig struct {
	// BaseBid is the minimum opening bid.
	BaseBid int `yaml:"base_bid"`
	// BidStep is the required bid increment.
	BidStep int `yaml:"bid_step"`
	// TurnTimeout bounds how long a captain may take per turn before an
	// automatic pass.
	TurnTimeout time.Duration `yaml:"turn_timeout"`
	// NextDelay is the wait between consecutive candidate auctions.
	NextDelay time.Duration `yaml:"next_delay"`
	// PreviewDelay is the countdown before the first candidate goes up.
	PreviewDelay time.Duration `yaml:"preview_delay"`
	// PauseMaxUses is the per-captain pause quota for one auction.
	PauseMaxUses int `yaml:"pause_max_uses"`
	// PauseDuration is how long a pause lasts unless released early.
	PauseDuration time.Duration `yaml:"pause_duration"`
	// StrategyBreak is the length of the one-time break fired once every
	// team has at least one member.
	StrategyBreak time.Duration `yaml:"strategy_break"`
	// TeamLimit is the maximum team size, captain included.
	TeamLimit int `yaml:"team_limit"`
	// EnforceSingleChannel binds the auction to the channel it was
	// started in.
	EnforceSingleChannel bool `yaml:"enforce_single_channel"`
}

// DatabaseConfig holds the audit journal backend settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Driver   string `yaml:"driver"` // "memory" or "postgres"
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		Auction: AuctionConfig{
			BaseBid:              100,
			BidStep:              10,
			TurnTimeout:          60 * time.Second,
			NextDelay:            10 * time.Second,
			PreviewDelay:         5 * time.Second,
			PauseMaxUses:         2,
			PauseDuration:        5 * time.Minute,
			StrategyBreak:        time.Minute,
			TeamLimit:            5,
			EnforceSingleChannel: true,
		},
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Driver:  "memory",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctionbot",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctionbot-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "memory", "postgres":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"memory\" or \"postgres\"", c.Database.Driver)
	}
	if c.Auction.BaseBid <= 0 {
		return fmt.Errorf("auction.base_bid must be positive, got %d", c.Auction.BaseBid)
	}
	if c.Auction.BidStep <= 0 {
		return fmt.Errorf("auction.bid_step must be positive, got %d", c.Auction.BidStep)
	}
	if c.Auction.TeamLimit < 2 {
		return fmt.Errorf("auction.team_limit must allow at least one member besides the captain, got %d", c.Auction.TeamLimit)
	}
	if c.Auction.PauseMaxUses < 0 {
		return fmt.Errorf("auction.pause_max_uses must not be negative, got %d", c.Auction.PauseMaxUses)
	}
	return nil
}
