// Package config содержит логику чтения конфигурации лотерейного сервиса.
package config

import (
	"flag"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации лотерейного сервиса.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	MaxConns    int    `env:"DB_MAX_CONNS"`
	// SingleActivePeriod запрещает открывать новый тираж, пока последний не разыгран.
	SingleActivePeriod *bool  `env:"SINGLE_ACTIVE_PERIOD"`
	RandomAttempts     int    `env:"RANDOM_ATTEMPTS"`
	PeriodTimezone     string `env:"PERIOD_TIMEZONE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envCfg := Config{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	var singleActive bool

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.IntVar(&cfg.MaxConns, "max-conns", 10, "maximum number of database connections")
	flag.BoolVar(&singleActive, "single-active", false, "refuse to open a reward period while the latest one is not drawn")
	flag.IntVar(&cfg.RandomAttempts, "random-attempts", 1000, "random number attempts per requested lotto")
	flag.StringVar(&cfg.PeriodTimezone, "tz", "Asia/Bangkok", "time zone used to pick reward period dates")

	flag.Parse()

	cfg.SingleActivePeriod = &singleActive

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.MaxConns > 0 {
		cfg.MaxConns = envCfg.MaxConns
	}
	if envCfg.SingleActivePeriod != nil {
		cfg.SingleActivePeriod = envCfg.SingleActivePeriod
	}
	if envCfg.RandomAttempts > 0 {
		cfg.RandomAttempts = envCfg.RandomAttempts
	}
	if envCfg.PeriodTimezone != "" {
		cfg.PeriodTimezone = envCfg.PeriodTimezone
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}

// Location возвращает часовой пояс, в котором определяется дата тиража.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.PeriodTimezone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", c.PeriodTimezone, err)
	}
	return loc, nil
}
