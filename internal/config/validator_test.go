package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		setup     func()
		wantError bool
		errMsg    string
	}{
		{
			name:      "Defaults",
			setup:     func() {},
			wantError: false,
		},
		{
			name: "Integer Timeouts",
			setup: func() {
				viper.Set("connect_timeout", 5)
				viper.Set("read_timeout", "45")
			},
			wantError: false,
		},
		{
			name: "Invalid Connect Timeout",
			setup: func() {
				viper.Set("connect_timeout", "-1s")
			},
			wantError: true,
			errMsg:    "connect_timeout must be positive",
		},
		{
			name: "Zero Read Timeout",
			setup: func() {
				viper.Set("read_timeout", 0)
			},
			wantError: true,
			errMsg:    "read_timeout must be positive",
		},
		{
			name: "Batch Size Above API Limit",
			setup: func() {
				viper.Set("batch_size", 1001)
			},
			wantError: true,
			errMsg:    "batch_size must be between 1 and 1000",
		},
		{
			name: "Negative Max Summary",
			setup: func() {
				viper.Set("max_summary", -1)
			},
			wantError: true,
			errMsg:    "max_summary must not be negative",
		},
		{
			name: "Negative Concurrency",
			setup: func() {
				viper.Set("concurrency", -2)
			},
			wantError: true,
			errMsg:    "concurrency must not be negative",
		},
		{
			name: "Negative Rate Limit",
			setup: func() {
				viper.Set("rate_limit", -0.5)
			},
			wantError: true,
			errMsg:    "rate_limit must not be negative",
		},
		{
			name: "Plain HTTP API",
			setup: func() {
				viper.Set("api_url", "http://osv.example.com/v1")
			},
			wantError: true,
			errMsg:    "api_url must use https",
		},
		{
			name: "Loopback HTTP API",
			setup: func() {
				viper.Set("api_url", "http://127.0.0.1:8080/v1")
			},
			wantError: false,
		},
		{
			name: "Relative API URL",
			setup: func() {
				viper.Set("api_url", "/v1")
			},
			wantError: true,
			errMsg:    "api_url must be an absolute URL",
		},
		{
			name: "Insecure Slack Webhook",
			setup: func() {
				viper.Set("notifications.slack.webhook_url", "http://hooks.slack.com/services/x")
			},
			wantError: true,
			errMsg:    "webhook_url must be an https URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			SetDefaults()
			tt.setup()
			defer viper.Reset()

			err := ValidateConfig()
			if tt.wantError {
				assert.Error(t, err)
				if err != nil {
					assert.True(t, strings.Contains(err.Error(), tt.errMsg), "error %q should contain %q", err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateConfigCollectsAllErrors(t *testing.T) {
	viper.Reset()
	SetDefaults()
	defer viper.Reset()

	viper.Set("batch_size", 0)
	viper.Set("max_summary", -5)

	err := ValidateConfig()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.Contains(t, err.Error(), "batch_size")
	assert.Contains(t, err.Error(), "max_summary")
}
