package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// ValidateConfig checks the loaded configuration. Commands that talk to
// the API pass requireToken.
func ValidateConfig(requireToken bool) error {
	var errors []string

	if requireToken && viper.GetString("service_token") == "" {
		errors = append(errors, "service token is required (set --service-token or TETHER_SERVICE_TOKEN)")
	}

	if origin := viper.GetString("api_origin"); origin != "" {
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("api_origin must be an http(s) URL, got: %q", origin))
		}
	}

	if viper.IsSet("concurrency") {
		if c := viper.GetInt("concurrency"); c <= 0 {
			errors = append(errors, fmt.Sprintf("concurrency must be positive, got: %d", c))
		}
	}

	if f := viper.GetString("log_format"); f != "" && f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("log_format must be text or json, got: %q", f))
	}

	if t := viper.GetString("backup.type"); t != "" && t != "local" && t != "s3" {
		errors = append(errors, fmt.Sprintf("backup.type must be local or s3, got: %q", t))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}
