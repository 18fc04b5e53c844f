package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const appName = "navwalk"

var v *viper.Viper

func init() {
	v = newViper()
}

func newViper() *viper.Viper {
	nv := viper.New()

	// Set default values
	nv.SetDefault("api.endpoint", "http://localhost:3000")
	nv.SetDefault("api.timeout", "0s")
	nv.SetDefault("api.start_hint", "npm run server")

	nv.SetDefault("walk.session_prefix", "test-navigate")
	nv.SetDefault("walk.headless", true)
	nv.SetDefault("walk.urls", []string{"https://www.baidu.com", "https://github.com"})
	nv.SetDefault("walk.script", "document.location.href")
	nv.SetDefault("walk.strict", false)
	nv.SetDefault("walk.html_format", "html")
	nv.SetDefault("walk.html_preview", 200)

	nv.SetDefault("screenshot.format", "png")
	nv.SetDefault("screenshot.dir", ".")

	nv.SetDefault("wait.strategy", "fixed")
	nv.SetDefault("wait.start_settle", "2s")
	nv.SetDefault("wait.navigate_settle", "3s")
	nv.SetDefault("wait.poll_interval", "250ms")
	nv.SetDefault("wait.poll_timeout", "15s")

	nv.SetDefault("server.addr", ":3000")

	// Environment variables: api.endpoint -> API_ENDPOINT
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	// Config file
	nv.SetConfigName("config")
	nv.SetConfigType("yaml")

	configPaths := []string{
		".",
		filepath.Join(xdg.ConfigHome, appName),
		"/etc/" + appName,
	}
	for _, path := range configPaths {
		nv.AddConfigPath(os.ExpandEnv(path))
	}

	return nv
}

// Load reads the config file at path, or the first config.yaml found on the
// search paths when path is empty. A missing searched file leaves defaults.
func Load(path string) error {
	nv := newViper()
	if path != "" {
		nv.SetConfigFile(path)
		if err := nv.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		v = nv
		return nil
	}

	if err := nv.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("failed to read config file %s: %w", nv.ConfigFileUsed(), err)
		}
	}
	v = nv
	return nil
}

// ConfigFileUsed returns the config file path in effect, if any
func ConfigFileUsed() string {
	return v.ConfigFileUsed()
}

// GetAPIURL returns the browser API base URL
func GetAPIURL() string {
	return strings.TrimSuffix(v.GetString("api.endpoint"), "/")
}

// GetAPITimeout returns the per-request client timeout, zero means none
func GetAPITimeout() time.Duration {
	return v.GetDuration("api.timeout")
}

// GetStartHint returns the command suggested when the API is unreachable
func GetStartHint() string {
	return v.GetString("api.start_hint")
}

// GetServerAddr returns the listen address of the stub server
func GetServerAddr() string {
	return v.GetString("server.addr")
}

// Walk holds the walkthrough settings
type Walk struct {
	SessionPrefix    string
	Headless         bool
	URLs             []string
	Script           string
	Strict           bool
	HTMLFormat       string
	HTMLPreview      int
	ScreenshotFormat string
	ScreenshotDir    string
}

// Wait holds the settle strategy settings
type Wait struct {
	Strategy       string
	StartSettle    time.Duration
	NavigateSettle time.Duration
	PollInterval   time.Duration
	PollTimeout    time.Duration
}

// GetWalk returns the walkthrough settings
func GetWalk() Walk {
	return Walk{
		SessionPrefix:    v.GetString("walk.session_prefix"),
		Headless:         v.GetBool("walk.headless"),
		URLs:             splitList(v.GetStringSlice("walk.urls")),
		Script:           v.GetString("walk.script"),
		Strict:           v.GetBool("walk.strict"),
		HTMLFormat:       v.GetString("walk.html_format"),
		HTMLPreview:      v.GetInt("walk.html_preview"),
		ScreenshotFormat: v.GetString("screenshot.format"),
		ScreenshotDir:    v.GetString("screenshot.dir"),
	}
}

// GetWait returns the settle strategy settings
func GetWait() Wait {
	return Wait{
		Strategy:       v.GetString("wait.strategy"),
		StartSettle:    v.GetDuration("wait.start_settle"),
		NavigateSettle: v.GetDuration("wait.navigate_settle"),
		PollInterval:   v.GetDuration("wait.poll_interval"),
		PollTimeout:    v.GetDuration("wait.poll_timeout"),
	}
}

// splitList accepts both YAML lists and comma separated env values
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
