// Command labelscan runs one matching session offline: it loads a reference
// manifest, matches every label file given on the command line and writes the
// export next to the other results.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/liteapi-travel/label-matcher-async/internal/app"
	"github.com/liteapi-travel/label-matcher-async/internal/config"
	"github.com/liteapi-travel/label-matcher-async/internal/export"
	"github.com/liteapi-travel/label-matcher-async/internal/logging"
	"github.com/liteapi-travel/label-matcher-async/internal/recognize"
	"github.com/liteapi-travel/label-matcher-async/internal/session"
)

type options struct {
	configPath    string
	referencePath string
	outDir        string
	textMode      bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("labelscan", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", os.Getenv("LABEL_CONFIG"), "path to the YAML config file")
	flagSet.StringVarP(&opts.referencePath, "reference", "r", "", "reference manifest (CSV or TSV)")
	flagSet.StringVarP(&opts.outDir, "out", "o", ".", "directory receiving the export")
	flagSet.BoolVar(&opts.textMode, "text", false, "treat inputs as already recognized text instead of photos")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	inputs := flagSet.Args()
	if len(inputs) == 0 {
		return fmt.Errorf("no label files given")
	}

	cfg, err := config.Load(opts.configPath, os.Getenv)
	if err != nil {
		return err
	}
	sink, err := logging.Open(cfg.Log.Dir, cfg.Log.TimeZone, os.Stderr)
	if err != nil {
		return err
	}
	defer sink.Close()
	logger := sink.Logger("INFO")

	var recognizer recognize.Provider
	if !opts.textMode {
		if recognizer, err = app.NewRecognizer(cfg, logger); err != nil {
			return err
		}
	}
	controller, err := app.NewController(cfg, recognizer, logger)
	if err != nil {
		return err
	}
	defer controller.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return scan(ctx, controller, opts, inputs, stdout)
}

func scan(ctx context.Context, c *session.Controller, opts options, inputs []string, stdout io.Writer) error {
	say := func(reply session.Reply, err error) error {
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, reply.Text)
		return nil
	}

	if opts.referencePath != "" {
		data, err := os.ReadFile(opts.referencePath)
		if err != nil {
			return fmt.Errorf("read reference: %w", err)
		}
		if err := say(c.BeginReference(ctx)); err != nil {
			return err
		}
		if err := say(c.LoadReferenceFile(ctx, filepath.Base(opts.referencePath), "", data)); err != nil {
			return err
		}
	}
	if err := say(c.StartSession(ctx)); err != nil {
		return err
	}

	for _, path := range inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		caption := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		fmt.Fprintf(stdout, "== %s\n", path)
		if opts.textMode {
			err = say(c.SubmitText(ctx, string(data), caption))
		} else {
			img := recognize.Image{Data: data, MIMEType: http.DetectContentType(data)}
			err = say(c.SubmitImage(ctx, img, caption))
		}
		if err != nil {
			return err
		}
	}

	return say(c.EndSession(ctx, copyTo(opts.outDir)))
}

// copyTo delivers the artifact into dir under its own name.
func copyTo(dir string) export.Deliverer {
	return export.DelivererFunc(func(_ context.Context, a export.Artifact, path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, a.Name), data, 0o644)
	})
}
