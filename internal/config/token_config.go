package config

import (
	"fmt"
	"time"
)

type TokenConfig interface {
	GetAccessTokenSecret() string
	GetChallengeTokenSecret() string
	GetAccessTokenExpiry() time.Duration
	GetChallengeTokenExpiry() time.Duration
	GetReplaySweepInterval() time.Duration
}

// Tokens holds the signing material. The access and challenge secrets are
// separate trust domains and must never be equal.
type Tokens struct {
	AccessSecret    string        `yaml:"access_secret" env:"ACCESS_TOKEN_SECRET"`
	ChallengeSecret string        `yaml:"challenge_secret" env:"CHALLENGE_TOKEN_SECRET"`
	AccessExpiry    time.Duration `yaml:"access_expiry" env:"ACCESS_TOKEN_TTL" env-default:"1h"`
	ChallengeExpiry time.Duration `yaml:"challenge_expiry" env:"CHALLENGE_TOKEN_TTL" env-default:"15m"`
	SweepInterval   time.Duration `yaml:"replay_sweep_interval" env:"REPLAY_SWEEP_INTERVAL" env-default:"1h"`
}

var _ TokenConfig = Tokens{}

func (t Tokens) GetAccessTokenSecret() string {
	return t.AccessSecret
}

func (t Tokens) GetChallengeTokenSecret() string {
	return t.ChallengeSecret
}

func (t Tokens) GetAccessTokenExpiry() time.Duration {
	return t.AccessExpiry
}

func (t Tokens) GetChallengeTokenExpiry() time.Duration {
	return t.ChallengeExpiry
}

func (t Tokens) GetReplaySweepInterval() time.Duration {
	return t.SweepInterval
}

func (t Tokens) validate() error {
	if t.AccessSecret == "" {
		return fmt.Errorf("tokens.access_secret is required")
	}
	if t.ChallengeSecret == "" {
		return fmt.Errorf("tokens.challenge_secret is required")
	}
	if t.AccessSecret == t.ChallengeSecret {
		return fmt.Errorf("tokens.access_secret and tokens.challenge_secret must differ")
	}
	if t.AccessExpiry <= 0 || t.ChallengeExpiry <= 0 {
		return fmt.Errorf("token expiries must be > 0")
	}
	if t.SweepInterval <= 0 {
		return fmt.Errorf("tokens.replay_sweep_interval must be > 0")
	}
	return nil
}
