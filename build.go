package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ocinpp/mosaic-generator/feeder"
	"github.com/ocinpp/mosaic-generator/imageio"
	"github.com/ocinpp/mosaic-generator/session"
	"github.com/ocinpp/mosaic-generator/worker"
)

// errJobFailed stops feeding once the worker has replied with an error.
var errJobFailed = errors.New("job failed")

// runBuild makes one mosaic from files with an in-process worker.
func runBuild(ctx context.Context, args []string, stderr io.Writer) error {
	var (
		configPath  string
		targetPath  string
		poolPaths   []string
		outPath     string
		tileSize    int
		blend       float64
		chunkSize   int
		compression string
		quiet       bool
	)

	flagSet := newFlagSet("build", stderr)
	flagSet.StringVar(&configPath, "config", "", "config file (YAML, or JSON/JSONC by extension); defaults to $MOSAIC_CONFIG")
	flagSet.StringVar(&targetPath, "target", "", "image to rebuild")
	flagSet.StringArrayVar(&poolPaths, "pool", nil, "pool image or directory of images; repeatable")
	flagSet.StringVar(&outPath, "out", "", "output file; a .jpg or .jpeg extension selects JPEG")
	flagSet.IntVar(&tileSize, "tile-size", 16, "side of a square tile in pixels")
	flagSet.Float64Var(&blend, "blend", 1, "weight of the pool image texture against its flat average color, 0 to 1 (default from config)")
	flagSet.IntVar(&chunkSize, "chunk-size", feeder.DefaultChunkSize, "bytes per chunk message")
	flagSet.StringVar(&compression, "compression", "none", "chunk compression: none, lz4 or zstd")
	flagSet.BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	switch {
	case targetPath == "":
		return errors.New("--target is required")
	case len(poolPaths) == 0:
		return errors.New("at least one --pool is required")
	case outPath == "":
		return errors.New("--out is required")
	}
	poolPaths = append(poolPaths, flagSet.Args()...)

	comp, err := session.ParseCompression(compression)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig(configPath, stderr)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(outPath)) {
	case ".jpg", ".jpeg":
		cfg.Output.Format = imageio.FormatJPEG
	case ".png":
		cfg.Output.Format = imageio.FormatPNG
	}
	if !flagSet.Changed("blend") {
		blend = cfg.Mosaic.DefaultColorBlend
	}
	opts, err := worker.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.Logger = logger

	poolFiles, err := feeder.ExpandPool(poolPaths)
	if err != nil {
		return err
	}
	target, err := feeder.FileLoader{}.LoadImage(targetPath)
	if err != nil {
		return err
	}
	pool, err := feeder.LoadImages(ctx, feeder.FileLoader{}, poolFiles)
	if err != nil {
		return err
	}
	logger.Info("building mosaic", "target", targetPath, "pool", len(pool), "tile_size", tileSize, "color_blend", blend)

	var final worker.Reply
	out := worker.OutboxFunc(func(r worker.Reply) error {
		if r.Rejected {
			logger.Warn("message rejected while a job was running", "error", r.Error)
			return nil
		}
		if r.Terminal() {
			final = r
			if r.Error != "" {
				return errJobFailed
			}
			return nil
		}
		if quiet {
			return nil
		}
		if r.Percentage != nil {
			fmt.Fprintf(stderr, "[%3d%%] %s\n", *r.Percentage, r.Progress)
		} else {
			fmt.Fprintf(stderr, "       %s\n", r.Progress)
		}
		return nil
	})

	w := worker.New(out, opts)
	err = feeder.Run(ctx, w, tileSize, blend, target, pool, feeder.Options{
		ChunkSize:   chunkSize,
		Compression: comp,
		Digest:      true,
	})
	switch {
	case errors.Is(err, errJobFailed):
		return fmt.Errorf("building mosaic: %s", final.Error)
	case err != nil:
		return err
	case final.MosaicImage == "":
		return errors.New("worker finished without a result")
	}

	_, data, err := imageio.ParseDataURI(final.MosaicImage)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(stderr, "[100%%] wrote %s (%d bytes)\n", outPath, len(data))
	}
	return nil
}
