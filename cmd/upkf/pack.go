package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/ungine/layeredfs/internal/compress"
	"github.com/ungine/layeredfs/upkf"
)

func (a *app) packCmd() *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "Pack a directory into a UPKF archive",
		ArgsUsage: "DIR",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output archive path (default: <DIR name>.upkf)",
			},
			&cli.StringFlag{
				Name:    "compression",
				Aliases: []string{"c"},
				Usage:   "Default compression: none|lzma|lzma2|gzip",
				Value:   a.cfg.Compression,
			},
			&cli.StringFlag{
				Name:  "origin",
				Usage: "Origin label (default: DIR name)",
			},
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Concurrent file readers (0 uses GOMAXPROCS)",
				Value:   a.cfg.Jobs,
			},
			&cli.BoolFlag{
				Name:  "compress-all",
				Usage: "Also compress files with already-compressed extensions",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("pack: expected exactly one DIR argument")
			}
			dir := cmd.Args().First()

			ct, err := compress.ParseType(cmd.String("compression"))
			if err != nil {
				return err
			}
			log, err := a.logger(cmd)
			if err != nil {
				return err
			}

			opts := []upkf.BuildOption{
				upkf.WithDefaultCompression(ct),
				upkf.WithJobs(cmd.Int("jobs")),
				upkf.WithBuildLogger(log),
			}
			if origin := cmd.String("origin"); origin != "" {
				opts = append(opts, upkf.WithOrigin(origin))
			}
			if cmd.Bool("compress-all") {
				opts = append(opts, upkf.WithSkipCompression(nil))
			}

			archive, err := upkf.Build(ctx, dir, opts...)
			if err != nil {
				return err
			}

			out := cmd.String("out")
			if out == "" {
				abs, err := filepath.Abs(dir)
				if err != nil {
					return err
				}
				out = filepath.Base(abs) + ".upkf"
			}
			if err := archive.Save(out); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.Root().Writer, "packed %d elements from %s into %s (origin %q, %s)\n",
				archive.Len(), dir, out, archive.Origin(), ct)
			return err
		},
	}
}
