package create

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tidelake/tide/internal/config"
	"github.com/tidelake/tide/internal/rows"
	"github.com/tidelake/tide/internal/table"
	"github.com/tidelake/tide/pkg/objectstore"
)

func Run(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	prefix := fs.String("table", "", "Table prefix in the object store")
	name := fs.String("name", "", "Table name")
	schemaPath := fs.String("schema", "", "Path to JSON schema file")
	partitionBy := fs.String("partition-by", "", "Comma-separated partition columns")
	fs.Parse(args)

	if *prefix == "" || *name == "" || *schemaPath == "" {
		fmt.Fprintln(os.Stderr, "create requires -table, -name and -schema")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	data, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatalf("Failed to read schema: %v", err)
	}
	schema := &rows.Schema{}
	if err := json.Unmarshal(data, schema); err != nil {
		log.Fatalf("Failed to parse schema: %v", err)
	}

	var partitionCols []string
	if *partitionBy != "" {
		for _, c := range strings.Split(*partitionBy, ",") {
			partitionCols = append(partitionCols, strings.TrimSpace(c))
		}
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

	_, err = table.Create(context.Background(), store, *prefix, *name, schema, partitionCols)
	if err != nil {
		log.Fatalf("Failed to create table: %v", err)
	}
	fmt.Printf("Created table %s at %s\n", *name, *prefix)
}
