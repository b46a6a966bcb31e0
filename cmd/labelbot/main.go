// Command labelbot serves the label-events function locally.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/spf13/pflag"

	labelmatch "github.com/liteapi-travel/label-matcher-async"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	var configPath string

	flagSet := pflag.NewFlagSet("labelbot", pflag.ContinueOnError)
	flagSet.StringVar(&port, "port", port, "port to listen on (env PORT)")
	flagSet.StringVar(&configPath, "config", os.Getenv("LABEL_CONFIG"), "path to the YAML config file (env LABEL_CONFIG)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if configPath != "" {
		os.Setenv("LABEL_CONFIG", configPath)
	}
	if os.Getenv("FUNCTION_TARGET") == "" {
		os.Setenv("FUNCTION_TARGET", labelmatch.FunctionName)
	}

	log.Printf("Serving %s on :%s", labelmatch.FunctionName, port)
	if err := funcframework.Start(port); err != nil {
		return fmt.Errorf("funcframework.Start: %w", err)
	}
	return nil
}
