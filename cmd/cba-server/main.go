package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/tomdowns/cbatool/internal/app"
	"github.com/tomdowns/cbatool/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to the standard locations)")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application, err := app.NewApplicationWithConfig(cfg)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
