// Command hpak builds and inspects HPAK archives.
//
//	hpak build [-config hpak.yaml] [-v] -o assets.hpak ./assets
//	hpak inspect assets.hpak
//	hpak cat [-meta] assets.hpak textures/grass.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/meigma/hpak"
	"github.com/meigma/hpak/config"
)

const usage = `usage:
  hpak build [-config file] [-v] -o archive dir
  hpak inspect [-config file] archive
  hpak cat [-config file] [-meta] archive path
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "hpak:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid usage")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	switch args[0] {
	case "build":
		return runBuild(ctx, args[1:], stdout, stderr)
	case "inspect":
		return runInspect(args[1:], stdout, stderr)
	case "cat":
		return runCat(args[1:], stdout, stderr)
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "hpak.yaml", "build configuration (defaults apply if missing)")
	return fs, configPath
}

func runBuild(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("build", stderr)
	out := fs.String("o", "", "output archive path")
	verbose := fs.Bool("v", false, "log each entry")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" || fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return err
	}
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	opts := append(cfg.WriterOptions(), hpak.WithLogger(logger))
	w, err := hpak.Create(*out, opts...)
	if err != nil {
		return err
	}
	defer w.Close()

	report, err := w.AddPathsFromDir(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if err := w.Finish(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s: %d files added, %d skipped\n", *out, len(report.Added), len(report.Failed))
	for _, f := range report.Failed {
		fmt.Fprintf(stdout, "  skipped %s: %v\n", f.Path, f.Err)
	}
	return nil
}

func runInspect(args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("inspect", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}
	r, err := openArchive(*configPath, fs.Arg(0))
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintf(stdout, "version:              %d\n", r.Version())
	fmt.Fprintf(stdout, "metadata compression: %s\n", r.MetadataCompression())
	st := r.Stats()
	fmt.Fprintf(stdout, "files:                %d\n", st.Files)
	fmt.Fprintf(stdout, "directories:          %d\n", st.Dirs)
	fmt.Fprintf(stdout, "metadata bytes:       %d\n", st.MetadataBytes)
	fmt.Fprintf(stdout, "data bytes:           %d\n", st.DataBytes)
	fmt.Fprintf(stdout, "padding bytes:        %d\n", st.PaddingBytes)
	fmt.Fprintf(stdout, "size:                 %d\n", st.ArchiveSize)
	fmt.Fprintf(stdout, "digest:               %s\n", r.Digest())
	return nil
}

func runCat(args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("cat", stderr)
	meta := fs.Bool("meta", false, "print the metadata instead of the data")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errUsage
	}
	r, err := openArchive(*configPath, fs.Arg(0))
	if err != nil {
		return err
	}
	defer r.Close()

	open := r.OpenData
	if *meta {
		open = r.OpenMetadata
	}
	rc, err := open(fs.Arg(1))
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(stdout, rc)
	return err
}

func openArchive(configPath, path string) (*hpak.Reader, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	return hpak.Open(path, cfg.ReaderOptions()...)
}
