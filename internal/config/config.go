// pg_fedi is a federated ActivityPub server core.
// Copyright (C) 2026 The pg_fedi Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config holds the process-wide Config struct and its defaults.
// Loading from disk is a thin convenience wrapper; the interactive setup
// wizard an operator would run is out of this module's scope.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Config is the top-level process configuration, as named in spec.md §6.
type Config struct {
	Server   ServerConfig   `ini:"server"`
	Database DatabaseConfig `ini:"database"`
	Delivery DeliveryConfig `ini:"delivery"`
}

type ServerConfig struct {
	// Domain is the instance's public hostname, e.g. "test.example".
	Domain string `ini:"domain" comment:"Required. The instance's public hostname."`
	// UseHTTPS selects the scheme used when minting URIs.
	UseHTTPS bool `ini:"use_https" comment:"(default: true) Mint https:// URIs when true."`
	// AutoAcceptFollows controls whether inbound Follow activities are
	// accepted automatically.
	AutoAcceptFollows bool `ini:"auto_accept_follows" comment:"(default: true) Auto-accept inbound Follow activities."`
	// UserAgent is sent on outbound federation requests.
	UserAgent string `ini:"user_agent" comment:"(default: pg_fedi/0.1.0) User-Agent sent on outbound requests."`
}

type DatabaseConfig struct {
	DatabaseKind            string `ini:"database_kind" comment:"Only \"postgres\" is supported."`
	DatabaseName            string `ini:"database_name"`
	UserName                string `ini:"user_name"`
	Password                string `ini:"password"`
	Host                    string `ini:"host"`
	Port                    int    `ini:"port" comment:"(default: 5432)"`
	SSLMode                 string `ini:"ssl_mode" comment:"(default: disable)"`
	ConnMaxLifetimeSeconds  int    `ini:"conn_max_lifetime_seconds" comment:"(default: 3600)"`
	MaxOpenConns            int    `ini:"max_open_conns" comment:"(default: 10)"`
	MaxIdleConns            int    `ini:"max_idle_conns" comment:"(default: 2)"`
}

type DeliveryConfig struct {
	// MaxDeliveryAttempts is spec.md §6's max_delivery_attempts (default
	// 8, range 1-20).
	MaxDeliveryAttempts int `ini:"max_delivery_attempts" comment:"(default: 8, range 1-20)"`
	// DeliveryTimeoutSeconds is spec.md §6's delivery_timeout_seconds
	// (default 30, range 5-120).
	DeliveryTimeoutSeconds int `ini:"delivery_timeout_seconds" comment:"(default: 30, range 5-120)"`
	// LeaseBatchSize bounds how many rows a single scheduler tick leases.
	LeaseBatchSize int `ini:"lease_batch_size" comment:"(default: 25)"`
	// PollPeriodSeconds is how often the scheduler wakes to look for work
	// absent a pub/sub nudge.
	PollPeriodSeconds int `ini:"poll_period_seconds" comment:"(default: 5)"`
	// OutboundRateLimitQPS/Burst throttle deliveries per destination host.
	OutboundRateLimitQPS   float64 `ini:"outbound_rate_limit_qps" comment:"(default: 2)"`
	OutboundRateLimitBurst int     `ini:"outbound_rate_limit_burst" comment:"(default: 5)"`
}

// Default returns the built-in defaults, mirroring framework/config.go's
// defaultConfig/default*Config helpers in the teacher.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			UseHTTPS:          true,
			AutoAcceptFollows: true,
			UserAgent:         "pg_fedi/0.1.0",
		},
		Database: DatabaseConfig{
			DatabaseKind:           "postgres",
			Port:                   5432,
			SSLMode:                "disable",
			ConnMaxLifetimeSeconds: 3600,
			MaxOpenConns:           10,
			MaxIdleConns:           2,
		},
		Delivery: DeliveryConfig{
			MaxDeliveryAttempts:    8,
			DeliveryTimeoutSeconds: 30,
			LeaseBatchSize:         25,
			PollPeriodSeconds:      5,
			OutboundRateLimitQPS:   2,
			OutboundRateLimitBurst: 5,
		},
	}
}

// Load reads an ini file into a Config seeded with Default() values, then
// Verifies it.
func Load(filename string) (*Config, error) {
	c := Default()
	cfg, err := ini.Load(filename)
	if err != nil {
		return nil, err
	}
	if err := cfg.MapTo(c); err != nil {
		return nil, err
	}
	if err := c.Verify(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes c to filename in ini format.
func Save(filename string, c *Config) error {
	cfg := ini.Empty()
	if err := ini.ReflectFrom(cfg, c); err != nil {
		return err
	}
	return cfg.SaveTo(filename)
}

// Verify cascades validation across every sub-config, matching
// framework/config/verify.go's Config.Verify().
func (c *Config) Verify() error {
	if err := c.Server.Verify(); err != nil {
		return err
	}
	if err := c.Database.Verify(); err != nil {
		return err
	}
	return c.Delivery.Verify()
}

func (s *ServerConfig) Verify() error {
	if len(s.Domain) == 0 {
		return fmt.Errorf("config: server.domain must not be empty")
	}
	if len(s.UserAgent) == 0 {
		s.UserAgent = "pg_fedi/0.1.0"
	}
	return nil
}

// DSN builds the libpq connection string internal/store.Open expects,
// wiring the jackc/pgx/v4/stdlib driver registered under the "pgx" name.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.DatabaseName, d.UserName, d.Password, d.SSLMode,
	)
}

func (d *DatabaseConfig) Verify() error {
	if d.DatabaseKind != "postgres" {
		return fmt.Errorf("config: unsupported database_kind: %s", d.DatabaseKind)
	}
	if len(d.DatabaseName) == 0 {
		return fmt.Errorf("config: database.database_name must not be empty")
	}
	if len(d.UserName) == 0 {
		return fmt.Errorf("config: database.user_name must not be empty")
	}
	return nil
}

func (d *DeliveryConfig) Verify() error {
	if d.MaxDeliveryAttempts < 1 || d.MaxDeliveryAttempts > 20 {
		return fmt.Errorf("config: delivery.max_delivery_attempts must be in [1,20], got %d", d.MaxDeliveryAttempts)
	}
	if d.DeliveryTimeoutSeconds < 5 || d.DeliveryTimeoutSeconds > 120 {
		return fmt.Errorf("config: delivery.delivery_timeout_seconds must be in [5,120], got %d", d.DeliveryTimeoutSeconds)
	}
	if d.LeaseBatchSize <= 0 {
		return fmt.Errorf("config: delivery.lease_batch_size must be positive")
	}
	if d.PollPeriodSeconds <= 0 {
		return fmt.Errorf("config: delivery.poll_period_seconds must be positive")
	}
	if d.OutboundRateLimitQPS <= 0 {
		return fmt.Errorf("config: delivery.outbound_rate_limit_qps must be positive")
	}
	if d.OutboundRateLimitBurst <= 0 {
		return fmt.Errorf("config: delivery.outbound_rate_limit_burst must be positive")
	}
	return nil
}
