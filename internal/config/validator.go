package config

import (
	"fmt"
	"net"
	"net/url"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const maxBatchSize = 1000

// ValidateConfig validates configuration values and returns every problem found.
// This function should be called after viper has loaded the configuration.
func ValidateConfig() error {
	var result *multierror.Error

	for _, key := range []string{"connect_timeout", "read_timeout"} {
		if d := GetDuration(key); d <= 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be positive, got: %v", key, viper.Get(key)))
		}
	}

	if size := viper.GetInt("batch_size"); size < 1 || size > maxBatchSize {
		result = multierror.Append(result, fmt.Errorf("batch_size must be between 1 and %d, got: %d", maxBatchSize, size))
	}

	if n := viper.GetInt("concurrency"); n < 0 {
		result = multierror.Append(result, fmt.Errorf("concurrency must not be negative, got: %d", n))
	}

	if r := viper.GetFloat64("rate_limit"); r < 0 {
		result = multierror.Append(result, fmt.Errorf("rate_limit must not be negative, got: %v", r))
	}

	if n := viper.GetInt("max_summary"); n < 0 {
		result = multierror.Append(result, fmt.Errorf("max_summary must not be negative, got: %d", n))
	}

	if err := validateAPIURL(viper.GetString("api_url")); err != nil {
		result = multierror.Append(result, err)
	}

	if hook := viper.GetString("notifications.slack.webhook_url"); hook != "" {
		if u, err := url.Parse(hook); err != nil || u.Scheme != "https" {
			result = multierror.Append(result, fmt.Errorf("notifications.slack.webhook_url must be an https URL, got: %s", hook))
		}
	}

	return result.ErrorOrNil()
}

// validateAPIURL requires https. Plain http is accepted for loopback hosts only.
func validateAPIURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("api_url must be an absolute URL, got: %q", raw)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" {
			return nil
		}
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			return nil
		}
	}
	return fmt.Errorf("api_url must use https, got: %s", raw)
}
