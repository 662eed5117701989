package history

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tidelake/tide/internal/config"
	"github.com/tidelake/tide/internal/table"
	"github.com/tidelake/tide/pkg/objectstore"
)

func Run(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	prefix := fs.String("table", "", "Table prefix in the object store")
	limit := fs.Int("n", 20, "Number of entries to show (0 = all)")
	fs.Parse(args)

	if *prefix == "" {
		fmt.Fprintln(os.Stderr, "history requires -table")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := objectstore.New(objectstore.Config{
		Type:      cfg.ObjectStore.Type,
		RootPath:  cfg.ObjectStore.RootPath,
		Endpoint:  cfg.ObjectStore.Endpoint,
		Bucket:    cfg.ObjectStore.Bucket,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		Region:    cfg.ObjectStore.Region,
		UseSSL:    cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}

	l := table.Open(store, *prefix)
	entries, err := l.History(context.Background(), *limit)
	if err != nil {
		log.Fatalf("Failed to read history: %v", err)
	}

	for _, e := range entries {
		fmt.Printf("%s  %s\n", e.Timestamp.UTC().Format(time.RFC3339), e.Operation)
		if pred, ok := e.Parameters["predicate"]; ok {
			fmt.Printf("    predicate: %s\n", pred)
		}
		if len(e.Metrics) > 0 {
			fmt.Printf("    metrics: ")
			first := true
			for _, k := range []string{"sourceRows", "rowsUpdated", "rowsInserted", "rowsDeleted", "rowsCopied", "filesRemoved", "filesAdded"} {
				if v, ok := e.Metrics[k]; ok {
					if !first {
						fmt.Printf(" ")
					}
					fmt.Printf("%s=%d", k, v)
					first = false
				}
			}
			fmt.Println()
		}
	}
}
