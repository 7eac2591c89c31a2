// Package main provides the Kiln CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"
	"k8s.io/klog/v2"

	"github.com/kiln-ml/kiln/internal/config"
)

const version = "v0.1.0-dev"

func main() {
	app := &cli.Command{
		Name:  "kiln",
		Usage: "Pooling operator core CLI",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			benchCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("kiln %s\n", version)
			return nil
		},
	}
}

// loadConfig reads the config file and applies its verbosity to klog.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	if cfg.Verbosity > 0 {
		if err := fs.Set("v", strconv.Itoa(cfg.Verbosity)); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}
