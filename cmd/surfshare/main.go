// SPDX-License-Identifier: Unlicense OR MIT

// Command surfshare transfers a filled surface between two
// independent GL devices and verifies the pixels that arrive.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"gioui.org/surfshare/surface"
)

var (
	adapterFlag = &cli.StringFlag{
		Name:    "adapter",
		Usage:   "backend of the source device (egl, soft, soft-rect); empty selects the first available",
		EnvVars: []string{"SURFSHARE_ADAPTER"},
	}
	destAdapterFlag = &cli.StringFlag{
		Name:  "dest-adapter",
		Usage: "backend of the destination device, defaults to --adapter",
	}
	widthFlag = &cli.IntFlag{
		Name:  "width",
		Usage: "surface width in pixels",
	}
	heightFlag = &cli.IntFlag{
		Name:  "height",
		Usage: "surface height in pixels",
	}
	sourceColorFlag = &cli.StringFlag{
		Name:  "source-color",
		Usage: "source fill, a color name or r,g,b[,a] in [0, 1]",
	}
	destColorFlag = &cli.StringFlag{
		Name:  "dest-color",
		Usage: "destination fill before the transfer",
	}
	clearColorFlag = &cli.StringFlag{
		Name:  "clear-color",
		Usage: "color the destination is cleared to before the blit; empty skips the clear",
	}
	glVersionFlag = &cli.StringFlag{
		Name:  "gl-version",
		Usage: "requested GL version, major.minor",
	}
	alphaFlag = &cli.BoolFlag{
		Name:  "alpha",
		Usage: "request contexts with an alpha channel",
	}
	configFlag = &cli.PathFlag{
		Name:  "config",
		Usage: "TOML configuration file; flags override its values",
	}
	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "debug, info, warn or error",
		EnvVars: []string{"SURFSHARE_LOG_LEVEL"},
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "surfshare",
		Usage: "blit a surface between GL contexts of independent devices",
		Flags: []cli.Flag{
			adapterFlag,
			destAdapterFlag,
			widthFlag,
			heightFlag,
			sourceColorFlag,
			destColorFlag,
			clearColorFlag,
			glVersionFlag,
			alphaFlag,
			configFlag,
			logLevelFlag,
		},
		Action: run,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "surfshare: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := configure(ctx)
	if err != nil {
		return err
	}
	s, err := cfg.settings()
	if err != nil {
		return err
	}
	surface.SetLogger(slog.New(slog.NewTextHandler(ctx.App.ErrWriter, &slog.HandlerOptions{Level: s.logLevel})))
	res, err := transfer(s)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "%s -> %s: %v\n", res.source, res.dest, res.got)
	if !res.ok() {
		return fmt.Errorf("read back %v, want %v", res.got, res.want)
	}
	return nil
}

// configure merges the defaults, the configuration file and the
// flags set on the command line.
func configure(ctx *cli.Context) (config, error) {
	cfg := defaultConfig()
	if path := ctx.Path(configFlag.Name); path != "" {
		if err := loadConfig(path, &cfg); err != nil {
			return config{}, err
		}
	}
	strs := []struct {
		flag *cli.StringFlag
		dst  *string
	}{
		{adapterFlag, &cfg.Adapter},
		{destAdapterFlag, &cfg.DestAdapter},
		{sourceColorFlag, &cfg.SourceColor},
		{destColorFlag, &cfg.DestColor},
		{clearColorFlag, &cfg.ClearColor},
		{glVersionFlag, &cfg.GLVersion},
		{logLevelFlag, &cfg.LogLevel},
	}
	for _, f := range strs {
		if ctx.IsSet(f.flag.Name) {
			*f.dst = ctx.String(f.flag.Name)
		}
	}
	if ctx.IsSet(widthFlag.Name) {
		cfg.Width = ctx.Int(widthFlag.Name)
	}
	if ctx.IsSet(heightFlag.Name) {
		cfg.Height = ctx.Int(heightFlag.Name)
	}
	if ctx.IsSet(alphaFlag.Name) {
		cfg.Alpha = ctx.Bool(alphaFlag.Name)
	}
	return cfg, nil
}
