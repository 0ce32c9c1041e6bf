// Package config reads process settings from the environment.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the settings shared by the entry points.
type Config struct {
	Addr      string
	LogLevel  zerolog.Level
	LogFormat string
	// MaxDepth caps grid searches; 0 means no limit.
	MaxDepth  int
	PileDepth int
	PileMin   int
	PileMax   int
	StoneMax  int
	// PileLimit is the longest pile a player may set up.
	PileLimit int
	NimDepth  int
	// NimMax is the largest heap a nim game may start from.
	NimMax       int
	AllowOrigins []string
	Heartbeat    time.Duration
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr:      ":8080",
		LogLevel:  zerolog.InfoLevel,
		LogFormat: "console",
		PileDepth: 10,
		PileMin:   14,
		PileMax:   17,
		StoneMax:  10,
		PileLimit: 100,
		NimDepth:  16,
		NimMax:    15,
		Heartbeat: 15 * time.Second,
	}
}

// Load reads the environment on top of Default.
func Load() (Config, error) { return FromLookup(os.LookupEnv) }

// FromLookup reads settings through lookup, which behaves like os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	get := func(k, d string) string {
		if v, ok := lookup(k); ok && v != "" {
			return v
		}
		return d
	}

	c.Addr = get("ADDR", c.Addr)
	c.LogFormat = get("LOG_FORMAT", c.LogFormat)
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return c, fmt.Errorf("LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	lvl, err := zerolog.ParseLevel(get("LOG_LEVEL", c.LogLevel.String()))
	if err != nil {
		return c, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	c.LogLevel = lvl

	ints := []struct {
		key string
		dst *int
	}{
		{"SEARCH_MAX_DEPTH", &c.MaxDepth},
		{"PILE_MAX_DEPTH", &c.PileDepth},
		{"PILE_MIN", &c.PileMin},
		{"PILE_MAX", &c.PileMax},
		{"STONE_MAX", &c.StoneMax},
		{"PILE_LIMIT", &c.PileLimit},
		{"NIM_MAX_DEPTH", &c.NimDepth},
		{"NIM_MAX", &c.NimMax},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(get(f.key, strconv.Itoa(*f.dst)))
		if err != nil {
			return c, fmt.Errorf("%s: %w", f.key, err)
		}
		if v < 0 {
			return c, fmt.Errorf("%s: must not be negative, got %d", f.key, v)
		}
		*f.dst = v
	}
	if c.PileLimit < 1 {
		return c, fmt.Errorf("PILE_LIMIT: need at least 1 stone, got %d", c.PileLimit)
	}
	if c.NimMax < 1 {
		return c, fmt.Errorf("NIM_MAX: need at least 1 stick, got %d", c.NimMax)
	}
	if c.PileMin < 1 || c.PileMax < c.PileMin {
		return c, fmt.Errorf("PILE_MIN/PILE_MAX: need 1 <= %d <= %d", c.PileMin, c.PileMax)
	}

	hb, err := time.ParseDuration(get("HEARTBEAT", c.Heartbeat.String()))
	if err != nil {
		return c, fmt.Errorf("HEARTBEAT: %w", err)
	}
	c.Heartbeat = hb

	_, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return c, fmt.Errorf("ADDR: %w", err)
	}
	allow := get("ORIGIN_ALLOWLIST", "http://localhost:"+port+",http://127.0.0.1:"+port)
	for _, o := range strings.Split(allow, ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.AllowOrigins = append(c.AllowOrigins, o)
		}
	}
	return c, nil
}
