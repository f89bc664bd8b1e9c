package resilience

import (
	"time"

	"github.com/sells-group/debtlink/internal/config"
)

// RetryFromConfig converts batch settings to a RetryConfig. Zero values keep
// the defaults.
func RetryFromConfig(b config.BatchConfig) RetryConfig {
	cfg := DefaultRetryConfig()
	if b.RetryAttempts > 0 {
		cfg.MaxAttempts = b.RetryAttempts
	}
	if b.RetryInitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(b.RetryInitialBackoffMs) * time.Millisecond
	}
	if b.RetryMaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(b.RetryMaxBackoffMs) * time.Millisecond
	}
	return cfg
}

// BreakerFromConfig converts batch settings to a BreakerConfig.
func BreakerFromConfig(b config.BatchConfig) BreakerConfig {
	return BreakerConfig{
		Threshold:    b.CircuitThreshold,
		ResetTimeout: time.Duration(b.CircuitResetSecs) * time.Second,
	}
}
