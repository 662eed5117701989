package show

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tidelake/tide/internal/config"
	"github.com/tidelake/tide/internal/table"
	"github.com/tidelake/tide/pkg/objectstore"
)

func Run(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	prefix := fs.String("table", "", "Table prefix in the object store")
	files := fs.Bool("files", false, "List data files")
	fs.Parse(args)

	if *prefix == "" {
		fmt.Fprintln(os.Stderr, "show requires -table")
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
	snap, err := l.Snapshot(context.Background())
	if err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}

	var rowCount int64
	for _, f := range snap.Files {
		rowCount += f.Rows
	}
	fmt.Printf("Table:       %s\n", snap.Metadata.Name)
	fmt.Printf("Version:     %d\n", snap.Version)
	fmt.Printf("Schema hash: %s\n", snap.SchemaHash())
	fmt.Printf("Files:       %d\n", snap.NumFiles())
	fmt.Printf("Rows:        %d\n", rowCount)
	fmt.Printf("Bytes:       %d\n", snap.TotalBytes())
	if len(snap.Metadata.PartitionColumns) > 0 {
		fmt.Printf("Partitioned: %v\n", snap.Metadata.PartitionColumns)
	}

	if *files {
		fmt.Println()
		for _, f := range snap.FileList() {
			fmt.Printf("  %s  rows=%d size=%d partition=%v\n", f.Path, f.Rows, f.Size, f.PartitionValues)
		}
	}
}
