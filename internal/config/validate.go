package config

import (
	"fmt"
	"net"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates errors that block startup from ones that are
// auto-corrected and merely logged.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

// Validate checks the config. Out-of-range numeric values are clamped and
// reported as warnings; values the gateway cannot run with are fatal.
func (c *Config) Validate() ValidationResult {
	var result ValidationResult

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		result.Fatals = append(result.Fatals, fmt.Errorf("listen_addr %q is not host:port: %w", c.ListenAddr, err))
	}

	if c.HostKeyPath == "" {
		result.Fatals = append(result.Fatals, fmt.Errorf("host_key_path must not be empty"))
	}

	if c.MaxSessions < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("max_sessions %d is below minimum 1, clamping", c.MaxSessions))
		c.MaxSessions = 1
	} else if c.MaxSessions > 64 {
		result.Warnings = append(result.Warnings, fmt.Errorf("max_sessions %d exceeds maximum 64, clamping", c.MaxSessions))
		c.MaxSessions = 64
	}

	if c.GameWidth < 1 || c.GameHeight < 1 {
		result.Fatals = append(result.Fatals, fmt.Errorf("game resolution %dx%d is not positive", c.GameWidth, c.GameHeight))
	}

	if c.FrameRate < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("frame_rate %d is below minimum 1, clamping", c.FrameRate))
		c.FrameRate = 1
	} else if c.FrameRate > 60 {
		result.Warnings = append(result.Warnings, fmt.Errorf("frame_rate %d exceeds maximum 60, clamping", c.FrameRate))
		c.FrameRate = 60
	}

	if c.FFmpegBinary == "" {
		result.Fatals = append(result.Fatals, fmt.Errorf("ffmpeg_binary must not be empty"))
	}
	if c.XdotoolBinary == "" {
		result.Fatals = append(result.Fatals, fmt.Errorf("xdotool_binary must not be empty"))
	}
	if c.LaunchScript == "" {
		result.Fatals = append(result.Fatals, fmt.Errorf("launch_script must not be empty"))
	}

	if c.MonitorAddr != "" {
		if _, _, err := net.SplitHostPort(c.MonitorAddr); err != nil {
			result.Fatals = append(result.Fatals, fmt.Errorf("monitor_addr %q is not host:port: %w", c.MonitorAddr, err))
		}
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("unknown log_level %q, using info", c.LogLevel))
		c.LogLevel = "info"
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		result.Warnings = append(result.Warnings, fmt.Errorf("unknown log_format %q, using text", c.LogFormat))
		c.LogFormat = "text"
	}

	if c.KillGraceSeconds < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("kill_grace_seconds %d is below minimum 1, clamping", c.KillGraceSeconds))
		c.KillGraceSeconds = 1
	}
	if c.ReaperConcurrency < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("reaper_concurrency %d is below minimum 1, clamping", c.ReaperConcurrency))
		c.ReaperConcurrency = 1
	}

	return result
}
