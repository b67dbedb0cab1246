package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/betslip/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.FetchTimeoutMS, convey.ShouldEqual, 8000)
				convey.So(cfg.RefreshIntervalMS, convey.ShouldEqual, 30000)
				convey.So(cfg.Sports, convey.ShouldResemble, []string{"nba"})
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"*"})
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("BETSLIP_ADDR", ":8080")
			_ = os.Setenv("BETSLIP_FETCH_TIMEOUT_MS", "5000")
			_ = os.Setenv("BETSLIP_REFRESH_INTERVAL_MS", "45000")
			_ = os.Setenv("BETSLIP_BANKROLL", "2500.5")
			_ = os.Setenv("BETSLIP_SPORTS", "nfl, mlb")
			_ = os.Setenv("BETSLIP_PROVIDER_API_KEY", "secret")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.FetchTimeoutMS, convey.ShouldEqual, 5000)
				convey.So(cfg.RefreshIntervalMS, convey.ShouldEqual, 45000)
				convey.So(cfg.Bankroll, convey.ShouldEqual, 2500.5)
				convey.So(cfg.Sports, convey.ShouldResemble, []string{"nfl", "mlb"})
				convey.So(cfg.ProviderAPIKey, convey.ShouldEqual, "secret")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9191"
provider_url: "http://provider:9090"
cache_ttl_ms: 15000
kelly_multiplier: 0.5
sports: [nfl, nhl, mlb]
cors_origins:
  - https://ops.example.com
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BETSLIP_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9191")
				convey.So(cfg.ProviderURL, convey.ShouldEqual, "http://provider:9090")
				convey.So(cfg.CacheTTLMS, convey.ShouldEqual, 15000)
				convey.So(cfg.KellyMultiplier, convey.ShouldEqual, 0.5)
				convey.So(cfg.Sports, convey.ShouldResemble, []string{"nfl", "nhl", "mlb"})
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://ops.example.com"})
				convey.So(cfg.LiveCacheTTLMS, convey.ShouldEqual, 20000) // From defaults
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9191"
min_stake: 5
sports: [nfl, nhl]
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BETSLIP_CONFIG", tmpFile)
			_ = os.Setenv("BETSLIP_ADDR", ":8080") // This should override the file
			_ = os.Setenv("BETSLIP_SPORTS", "mlb")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.MinStake, convey.ShouldEqual, 5.0)
				convey.So(cfg.Sports, convey.ShouldResemble, []string{"mlb"})
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BETSLIP_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("BETSLIP_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("BETSLIP_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the refresh interval is outside 20s..60s", func() {
			_ = os.Setenv("BETSLIP_REFRESH_INTERVAL_MS", "5000")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("BETSLIP_FETCH_TIMEOUT_MS", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given config loader edge cases", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with special characters in addr", func() {
			_ = os.Setenv("BETSLIP_ADDR", "[::1]:8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, "[::1]:8080")
		})

		convey.Convey("When a list env var has blank entries", func() {
			_ = os.Setenv("BETSLIP_CORS_ORIGINS", " http://a.test,, http://b.test ,")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"http://a.test", "http://b.test"})
		})

		convey.Convey("When loading config with YAML file containing comments", func() {
			yamlContent := `
# This is a comment
addr: ":9191"  # Inline comment
# Another comment
date_bucket: "2026-10-15"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BETSLIP_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9191")
			convey.So(cfg.DateBucket, convey.ShouldEqual, "2026-10-15")
		})

		convey.Convey("When loading config with YAML file containing empty values", func() {
			yamlContent := `
addr: ""
bankroll: 500
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BETSLIP_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"BETSLIP_CONFIG",
		"BETSLIP_ADDR",
		"BETSLIP_FETCH_TIMEOUT_MS",
		"BETSLIP_REFRESH_INTERVAL_MS",
		"BETSLIP_BANKROLL",
		"BETSLIP_SPORTS",
		"BETSLIP_PROVIDER_API_KEY",
		"BETSLIP_CORS_ORIGINS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "betslip-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
