package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tidelake/tide/cmd/tide/create"
	"github.com/tidelake/tide/cmd/tide/history"
	"github.com/tidelake/tide/cmd/tide/show"
	"github.com/tidelake/tide/cmd/tide/version"
	"github.com/tidelake/tide/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	startMetrics()

	switch os.Args[1] {
	case "create":
		create.Run(os.Args[2:])
	case "show":
		show.Run(os.Args[2:])
	case "history":
		history.Run(os.Args[2:])
	case "version":
		version.Run()
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// startMetrics exposes the Prometheus registry while the command runs.
// Invocations without a configured address (or with a broken config,
// which the subcommand will report properly) skip it.
func startMetrics() {
	cfg, err := config.Load("")
	if err != nil || cfg.MetricsAddr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(cfg.MetricsAddr, mux)
	}()
}

func printUsage() {
	fmt.Println(`tide - Versioned Columnar Lake Tables

Usage:
  tide <command> [options]

Commands:
  create    Create a new table in the object store
  show      Print the current snapshot of a table
  history   Print the commit history of a table
  version   Print version information
  help      Show this help message

Run 'tide <command> --help' for more information on a command.`)
}
