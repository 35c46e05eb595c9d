// SPDX-License-Identifier: Unlicense OR MIT

package main

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/image/colornames"

	"gioui.org/surfshare/surface"
)

// config is the transfer to run. It is read from an optional TOML
// file and then overridden by command line flags.
type config struct {
	// Adapter is the backend of the source device. Empty selects
	// the first available backend.
	Adapter string `toml:"adapter"`
	// DestAdapter is the backend of the destination device and
	// defaults to Adapter.
	DestAdapter string `toml:"dest_adapter"`
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	SourceColor string `toml:"source_color"`
	DestColor   string `toml:"dest_color"`
	// ClearColor is the color the destination is cleared to
	// before the blit. Empty skips the clear.
	ClearColor string `toml:"clear_color"`
	GLVersion  string `toml:"gl_version"`
	Alpha      bool   `toml:"alpha"`
	LogLevel   string `toml:"log_level"`
}

func defaultConfig() config {
	return config{
		Width:       2,
		Height:      2,
		SourceColor: "red",
		DestColor:   "0.5,0.5,0.5,1",
		ClearColor:  "0.2,0.3,0.3,1",
		GLVersion:   "4.3",
		Alpha:       true,
		LogLevel:    "warn",
	}
}

// loadConfig decodes the TOML file at path over cfg.
func loadConfig(path string, cfg *config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// settings is a validated config.
type settings struct {
	adapter, destAdapter string
	size                 image.Point
	source, dest         color.NRGBA
	clear                *color.NRGBA
	attrs                surface.ContextAttributes
	logLevel             slog.Level
}

func (c config) settings() (settings, error) {
	s := settings{
		adapter:     c.Adapter,
		destAdapter: c.DestAdapter,
		size:        image.Pt(c.Width, c.Height),
	}
	if s.destAdapter == "" {
		s.destAdapter = s.adapter
	}
	if c.Width <= 0 || c.Height <= 0 {
		return settings{}, fmt.Errorf("invalid surface size %dx%d", c.Width, c.Height)
	}
	var err error
	if s.source, err = parseColor(c.SourceColor); err != nil {
		return settings{}, fmt.Errorf("source color: %w", err)
	}
	if s.dest, err = parseColor(c.DestColor); err != nil {
		return settings{}, fmt.Errorf("destination color: %w", err)
	}
	if c.ClearColor != "" {
		col, err := parseColor(c.ClearColor)
		if err != nil {
			return settings{}, fmt.Errorf("clear color: %w", err)
		}
		s.clear = &col
	}
	if s.attrs.Version, err = parseVersion(c.GLVersion); err != nil {
		return settings{}, err
	}
	if c.Alpha {
		s.attrs.Flags |= surface.ContextAlpha
	}
	if err := s.logLevel.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return settings{}, fmt.Errorf("log level: %w", err)
	}
	return s, nil
}

// parseColor parses an SVG color name or a comma separated tuple
// of 3 or 4 components in [0, 1].
func parseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		// Named colors are opaque.
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	comps := [4]uint8{3: 255}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil || v < 0 || v > 1 {
			return color.NRGBA{}, fmt.Errorf("invalid color component %q in %q", p, s)
		}
		comps[i] = uint8(math.Round(v * 255))
	}
	return color.NRGBA{R: comps[0], G: comps[1], B: comps[2], A: comps[3]}, nil
}

func parseVersion(s string) (surface.GLVersion, error) {
	var v surface.GLVersion
	if _, err := fmt.Sscanf(s, "%d.%d", &v.Major, &v.Minor); err != nil {
		return v, fmt.Errorf("invalid GL version %q", s)
	}
	return v, nil
}
