package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Config is read from the environment once at startup.
type Config struct {
	Addr      string `envconfig:"ADDR" default:":5000"`
	Database  string `envconfig:"DATABASE" default:"/tmp/repltweet.db"`
	SecretKey string `envconfig:"SECRET_KEY" default:"development key"`

	// Accounts that may delete anyone's tweets.
	Moderators []string `envconfig:"MODERATORS" default:"Scoder12,amasad,AllAwesome497,kennethreitz42"`

	// Single shared bucket across all API endpoints: RateMax requests per
	// RatePeriod for each signed-in user. A zero period disables limiting.
	RateMax    int           `envconfig:"RATE_MAX_REQUESTS" default:"1"`
	RatePeriod time.Duration `envconfig:"RATE_PERIOD" default:"1s"`

	LogLevel logrus.Level `envconfig:"LOG_LEVEL" default:"info"`
}

func loadConfig() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
