package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gobwas/glob"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/ungine/layeredfs/upkf"
)

const notVerified = "N/D"

type listing struct {
	Origin       string         `json:"origin"`
	Path         string         `json:"path"`
	Checksum     string         `json:"checksum"`
	Size         int64          `json:"size"`
	Recompressed bool           `json:"recompressed"`
	Count        int            `json:"count"`
	Elements     []elementEntry `json:"elements"`
}

type elementEntry struct {
	Path        string `json:"path"`
	Metadata    string `json:"metadata,omitempty"`
	Size        int64  `json:"size"`
	Binary      bool   `json:"binary"`
	Compression string `json:"compression"`
	CRC32       string `json:"crc32"`
	SHA256      string `json:"sha256"`
}

func (a *app) listCmd() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "List the elements of a UPKF archive",
		ArgsUsage: "ARCHIVE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "Verify element checksums while loading",
				Value: a.cfg.Verify,
			},
			&cli.StringFlag{
				Name:    "match",
				Aliases: []string{"m"},
				Usage:   "Only list element paths matching a glob (e.g. 'scripts/**.lua')",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Write the listing as JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("list: expected exactly one ARCHIVE argument")
			}
			log, err := a.logger(cmd)
			if err != nil {
				return err
			}

			var match glob.Glob
			if pattern := cmd.String("match"); pattern != "" {
				match, err = glob.Compile(pattern, '/')
				if err != nil {
					return fmt.Errorf("invalid --match pattern: %w", err)
				}
			}

			archive, err := upkf.Load(cmd.Args().First(),
				upkf.WithVerify(cmd.Bool("verify")),
				upkf.WithLogger(log))
			if err != nil {
				return err
			}

			l := newListing(archive, match)
			w := cmd.Root().Writer
			if cmd.Bool("json") {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(l)
			}
			return l.writeText(w)
		},
	}
}

func newListing(a *upkf.Archive, match glob.Glob) *listing {
	l := &listing{
		Origin:       a.Origin(),
		Path:         a.Path(),
		Checksum:     a.Checksum().String(),
		Size:         a.Size(),
		Recompressed: a.Recompressed(),
		Count:        a.Len(),
		Elements:     []elementEntry{},
	}
	for e := range a.Elements() {
		if match != nil && !match.Match(e.Path) {
			continue
		}
		entry := elementEntry{
			Path:        e.Path,
			Metadata:    e.Metadata,
			Size:        e.Size(),
			Binary:      e.Binary,
			Compression: e.Compression.String(),
			CRC32:       notVerified,
			SHA256:      notVerified,
		}
		if e.Integrity != nil {
			entry.CRC32 = fmt.Sprintf("%08x", e.Integrity.CRC32)
			entry.SHA256 = e.Integrity.SHA256
		}
		l.Elements = append(l.Elements, entry)
	}
	return l
}

func (l *listing) writeText(w io.Writer) error {
	fmt.Fprintf(w, "origin:   %s\n", l.Origin)
	fmt.Fprintf(w, "path:     %s\n", l.Path)
	fmt.Fprintf(w, "checksum: %s\n", l.Checksum)
	fmt.Fprintf(w, "size:     %d bytes\n", l.Size)
	fmt.Fprintf(w, "elements: %d\n\n", l.Count)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSIZE\tCOMPRESSION\tBINARY\tCRC32\tSHA256\tMETADATA")
	for _, e := range l.Elements {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%t\t%s\t%s\t%s\n",
			e.Path, e.Size, e.Compression, e.Binary, e.CRC32, e.SHA256, e.Metadata)
	}
	return tw.Flush()
}
