package broker

// Config holds the broker-wide configuration options of spec §6.
type Config struct {
	// HeartbeatMS is the liveness tick period. Default 2500.
	HeartbeatMS int64
	// DMode is the default worker-selection policy. Default ModeLoad.
	DMode Mode
	// RAttempts is the retry ceiling after rejects. Default 5.
	RAttempts int
	// Cache enables the response cache and request fingerprinting.
	Cache bool
}

const (
	defaultHeartbeatMS    = 2500
	defaultRAttempts      = 5
	defaultRequestTimeout = 60000
)

// DefaultConfig returns the broker's documented defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatMS: defaultHeartbeatMS,
		DMode:       ModeLoad,
		RAttempts:   defaultRAttempts,
		Cache:       false,
	}
}

func (c Config) withDefaults() Config {
	if c.HeartbeatMS <= 0 {
		c.HeartbeatMS = defaultHeartbeatMS
	}
	if c.RAttempts <= 0 {
		c.RAttempts = defaultRAttempts
	}
	return c
}
