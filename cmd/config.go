package cmd

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/joinpass/internal/session"
	"github.com/teemow/joinpass/internal/zoom"
)

// zoomFlags holds the Signature Issuer settings shared by serve, sign and
// verify.
type zoomFlags struct {
	sdkKey         string
	sdkSecret      string
	sdkSecretFile  string
	clockSkew      time.Duration
	validityWindow time.Duration
}

func (f *zoomFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sdkKey, "zoom-sdk-key", "", "Zoom Meeting SDK key. Can also use ZOOM_SDK_KEY env var.")
	cmd.Flags().StringVar(&f.sdkSecret, "zoom-sdk-secret", "", "Zoom Meeting SDK secret. Prefer ZOOM_SDK_SECRET or --zoom-sdk-secret-file so the secret does not show up in process listings.")
	cmd.Flags().StringVar(&f.sdkSecretFile, "zoom-sdk-secret-file", "", "File containing the Zoom Meeting SDK secret (e.g. a mounted Kubernetes secret). Can also use ZOOM_SDK_SECRET_FILE env var.")
	cmd.Flags().DurationVar(&f.clockSkew, "zoom-clock-skew", zoom.DefaultClockSkew, "How far the signed timestamp is shifted into the past. Can also use ZOOM_CLOCK_SKEW env var.")
	cmd.Flags().DurationVar(&f.validityWindow, "zoom-validity-window", zoom.DefaultValidityWindow, "Advisory lifetime of issued join tokens. Can also use ZOOM_VALIDITY_WINDOW env var.")
}

// loadEnv fills settings that were not set via flags from the environment.
func (f *zoomFlags) loadEnv(cmd *cobra.Command) error {
	envString(cmd, "zoom-sdk-key", "ZOOM_SDK_KEY", &f.sdkKey)
	envString(cmd, "zoom-sdk-secret", "ZOOM_SDK_SECRET", &f.sdkSecret)
	envString(cmd, "zoom-sdk-secret-file", "ZOOM_SDK_SECRET_FILE", &f.sdkSecretFile)
	if err := envDuration(cmd, "zoom-clock-skew", "ZOOM_CLOCK_SKEW", &f.clockSkew); err != nil {
		return err
	}
	return envDuration(cmd, "zoom-validity-window", "ZOOM_VALIDITY_WINDOW", &f.validityWindow)
}

// config resolves the secret and returns the issuer configuration. The
// secret file wins over an inline secret.
func (f *zoomFlags) config() (zoom.Config, error) {
	secret := zoom.NewSecret(f.sdkSecret)
	if f.sdkSecretFile != "" {
		loaded, err := zoom.LoadSecretFile(f.sdkSecretFile)
		if err != nil {
			return zoom.Config{}, err
		}
		secret = loaded
	}
	cfg := zoom.Config{
		SDKKey:         strings.TrimSpace(f.sdkKey),
		SDKSecret:      secret,
		ClockSkew:      f.clockSkew,
		ValidityWindow: f.validityWindow,
	}
	if err := cfg.Validate(); err != nil {
		return zoom.Config{}, err
	}
	return cfg, nil
}

// Environment variables only override flag values when the flag was not
// explicitly set.

func envString(cmd *cobra.Command, flag, env string, dst *string) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func envBool(cmd *cobra.Command, flag, env string, dst *bool) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if v := os.Getenv(env); v != "" {
		*dst = v == "true"
	}
}

func envInt(cmd *cobra.Command, flag, env string, dst *int) error {
	if cmd.Flags().Changed(flag) {
		return nil
	}
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return session.NewConfiguration("invalid %s value %q: must be an integer", env, v)
	}
	*dst = n
	return nil
}

func envFloat(cmd *cobra.Command, flag, env string, dst *float64) error {
	if cmd.Flags().Changed(flag) {
		return nil
	}
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return session.NewConfiguration("invalid %s value %q: must be a number", env, v)
	}
	*dst = n
	return nil
}

func envDuration(cmd *cobra.Command, flag, env string, dst *time.Duration) error {
	if cmd.Flags().Changed(flag) {
		return nil
	}
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return session.NewConfiguration("invalid %s value %q: %v", env, v, err)
	}
	*dst = d
	return nil
}

// newLogger returns the process logger. Logs go to w (stderr) so the stdio
// MCP transport keeps stdout to itself.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
