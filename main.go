// mosaic-generator builds photomosaics: it rebuilds a target image out of a
// pool of smaller images, each tile replaced by the pool image whose average
// color is closest.
//
// Usage:
//
//	mosaic-generator serve [flags]   worker protocol over stdin/stdout
//	mosaic-generator build [flags]   files in, mosaic image out
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ocinpp/mosaic-generator/config"
)

const usage = `mosaic-generator builds photomosaics.

Usage:
  mosaic-generator serve [flags]
  mosaic-generator build --target FILE --pool DIR|FILE... --out FILE [flags]

Run "mosaic-generator <command> --help" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("no command given")
	}
	switch args[0] {
	case "serve":
		return runServe(ctx, args[1:], stdin, stdout, stderr)
	case "build":
		return runBuild(ctx, args[1:], stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stderr, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// loadConfig reads the file named by --config or $MOSAIC_CONFIG and builds
// the logger it describes. Logs always go to stderr.
func loadConfig(path string, stderr io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.ResolvePath(path))
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := cfg.Logging.Logger(stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("mosaic-generator "+name, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	return flagSet
}
