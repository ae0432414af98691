package session

import "time"

// Config holds session store configuration from YAML.
type Config struct {
	// Enabled turns conversation memory on. When false sessions still
	// exist but never record messages.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// MaxAge is how long an idle session survives.
	// Default: 24h
	MaxAge time.Duration `yaml:"max_age"`

	// MaxSessions caps the number of live sessions; the least recently
	// active ones are evicted first.
	// Default: 100
	MaxSessions int `yaml:"max_sessions"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		MaxAge:      24 * time.Hour,
		MaxSessions: 100,
	}
}
