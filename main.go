package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"camdither/batch"
	"camdither/gallery"
	"camdither/palette"
	"camdither/parallel"
	"camdither/ui"

	"github.com/alecthomas/kong"
)

type CLI struct {
	LogLevel    string   `help:"Log level" enum:"debug,info,warn,error" default:"info"`
	LogFile     string   `help:"Write logs to this file instead of stderr. The live view defaults to a file in the temp folder" type:"path"`
	Workers     int      `help:"Number of parallel workers for batch rendering. 0 uses all CPUs" default:"0"`
	GalleryFile string   `help:"Gallery storage file" type:"path" default:"~/.local/share/camdither/gallery.json.zst"`
	Palettes    []string `help:"Extra palette files (.pal or hex lists) to load at startup" type:"existingfile"`

	Live    ui.CLICmd      `cmd:"" help:"Live dithered camera preview in the terminal"`
	Render  batch.CLICmd   `cmd:"" help:"Dither every picture in a folder"`
	Gallery gallery.CLICmd `cmd:"" help:"Manage saved snapshots"`
	Palette palette.CLICmd `cmd:"" help:"List, export and build palettes"`
}

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// setupLogging installs the default logger. The returned closer flushes the
// log file, if any.
func setupLogging(cli *CLI, command string) (io.Closer, error) {
	logFile := cli.LogFile
	if logFile == "" && strings.HasPrefix(command, "live") {
		logFile = filepath.Join(os.TempDir(), "camdither.log")
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file %q: %w", logFile, err)
		}
		w, closer = f, f
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel(cli.LogLevel)})))
	return closer, nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("camdither"),
		kong.Description("Ordered-dither camera filter with retro palettes."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, "~/.config/camdither/config.json", "./camdither.json"),
	)

	closer, err := setupLogging(&cli, kctx.Command())
	kctx.FatalIfErrorf(err)
	defer closer.Close()

	store := palette.Builtin()
	for _, path := range cli.Palettes {
		name, p, err := store.Resolve(path)
		if err != nil {
			slog.Error("could not load palette", "file", path, "error", err)
			continue
		}
		slog.Debug("palette loaded", "name", name, "colors", p.Len())
	}

	pool := parallel.Start(cli.Workers)
	gal := gallery.Open(cli.GalleryFile, gallery.DefaultCapacity)

	err = kctx.Run(store, gal, pool.Do, pool.Wait)
	if err != nil {
		closer.Close()
	}
	kctx.FatalIfErrorf(err)
}
