package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ungine/layeredfs"
)

func (a *app) stackFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "layer",
			Aliases: []string{"l"},
			Usage:   "Layer path (directory, .upkf or .vpk); repeat in priority order, highest first",
		},
		&cli.StringFlag{
			Name:    "stack",
			Aliases: []string{"s"},
			Usage:   "YAML stack file listing layers, highest priority first",
			Value:   a.cfg.Stack,
		},
		&cli.BoolFlag{
			Name:  "verify",
			Usage: "Verify UPKF element checksums while loading",
			Value: a.cfg.Verify,
		},
	}
}

// openStack builds the overlay from --stack and --layer. Stack file layers
// come first.
func (a *app) openStack(cmd *cli.Command) (*layeredfs.FS, error) {
	log, err := a.logger(cmd)
	if err != nil {
		return nil, err
	}
	var stack *StackFile
	if path := cmd.String("stack"); path != "" {
		stack, err = loadStack(path)
		if err != nil {
			return nil, err
		}
	}
	return buildFS(stack, cmd.StringSlice("layer"), cmd.Bool("verify"), layeredfs.WithLogger(log))
}

func (a *app) catCmd() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "Print files from a layer stack",
		ArgsUsage: "PATH...",
		Flags:     a.stackFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("cat: expected at least one PATH argument")
			}
			lfs, err := a.openStack(cmd)
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			for _, name := range cmd.Args().Slice() {
				f, err := lfs.GetFile(name)
				if err != nil {
					return err
				}
				data, err := f.Read()
				f.Close()
				if err != nil {
					return err
				}
				if _, err := w.Write(data); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

var errNotFound = errors.New("one or more paths were not found")

func (a *app) findCmd() *cli.Command {
	return &cli.Command{
		Name:      "find",
		Usage:     "Show which layer serves each path and where",
		ArgsUsage: "PATH...",
		Flags:     a.stackFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("find: expected at least one PATH argument")
			}
			lfs, err := a.openStack(cmd)
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			missing := false
			for _, name := range cmd.Args().Slice() {
				l, ok := lfs.Which(name)
				if !ok {
					fmt.Fprintf(w, "%s\tnot found\n", name)
					missing = true
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, l.Resolve(name), l.Kind(), l.ID())
			}
			if missing {
				return errNotFound
			}
			return nil
		},
	}
}
