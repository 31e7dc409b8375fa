package config

type StoreConfig interface {
	GetDatabaseURL() string
	GetRedisURL() string
	GetReplayKeyPrefix() string
}

// Stores selects the backing stores. Empty URLs fall back to in-memory stores.
type Stores struct {
	DatabaseURL     string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL        string `yaml:"redis_url" env:"REDIS_URL"`
	ReplayKeyPrefix string `yaml:"replay_key_prefix" env:"REPLAY_KEY_PREFIX" env-default:"replay:"`
}

var _ StoreConfig = Stores{}

func (s Stores) GetDatabaseURL() string {
	return s.DatabaseURL
}

func (s Stores) GetRedisURL() string {
	return s.RedisURL
}

func (s Stores) GetReplayKeyPrefix() string {
	return s.ReplayKeyPrefix
}
