// Command upkf packs, inspects and queries UPKF archives and layer stacks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

type app struct {
	cfg *Config
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newApp(cfg).Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(cfg *Config) *cli.Command {
	a := &app{cfg: cfg}
	return &cli.Command{
		Name:  "upkf",
		Usage: "Pack, inspect and query UPKF archives and layered filesystems",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug|info|warn|error",
				Value: cfg.LogLevel,
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: text|json",
				Value: cfg.LogFormat,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			a.packCmd(),
			a.listCmd(),
			a.catCmd(),
			a.findCmd(),
		},
	}
}

// logger builds the logger from the root flags. Records go to the root
// command's error writer so they never mix with command output.
func (a *app) logger(cmd *cli.Command) (*slog.Logger, error) {
	root := cmd.Root()
	w := root.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	return newLogger(w, root.String("log-level"), root.String("log-format"))
}
