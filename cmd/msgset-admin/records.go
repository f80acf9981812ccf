package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/migadu/msgset/config"
	"github.com/migadu/msgset/msgset"
	"github.com/migadu/msgset/store"
)

func openStore(ctx context.Context, configPath string) store.RecordStore {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	records, err := store.Open(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open %s store: %v\n", cfg.Store.Backend, err)
		os.Exit(1)
	}
	return records
}

func handleRecordCommand(ctx context.Context) {
	if len(os.Args) < 3 {
		printRecordUsage()
		os.Exit(1)
	}

	switch os.Args[2] {
	case "put":
		handleRecordPut(ctx)
	case "get":
		handleRecordGet(ctx)
	case "delete":
		handleRecordDelete(ctx)
	case "list":
		handleRecordList(ctx)
	case "help", "--help", "-h":
		printRecordUsage()
	default:
		fmt.Printf("Unknown record subcommand: %s\n\n", os.Args[2])
		printRecordUsage()
		os.Exit(1)
	}
}

func printRecordUsage() {
	fmt.Printf(`Record Store Management

Usage:
  msgset-admin record <subcommand> [options]

Subcommands:
  put     Store a set under its canonical key
  get     Print a stored set in compact notation
  delete  Remove a stored set
  list    List stored keys

Examples:
  msgset-admin record put --config config.toml --scope INBOX --mode uid --compact 1:100,250
  msgset-admin record get --config config.toml --scope INBOX --mode uid
  msgset-admin record list --config config.toml --prefix uid/
`)
}

func handleRecordPut(ctx context.Context) {
	fs := flag.NewFlagSet("record put", flag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to TOML configuration file")
	scope := fs.String("scope", "", "mailbox scope")
	mode := fs.String("mode", "uid", "addressing mode (uid or seq)")
	compact := fs.String("compact", "", "set in compact notation")
	fs.Parse(os.Args[3:])

	normalized, m, err := parseScopeMode(*scope, *mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	set, err := msgset.Decode(normalized, m, *compact)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	rec, err := set.ToRecord()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	records := openStore(ctx, *configPath)
	defer records.Close()

	key := store.KeyFor(normalized, m)
	if err := records.Put(ctx, key, rec); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	n, _ := set.Count()
	fmt.Printf("Stored %d members under %q\n", n, key)
}

func handleRecordGet(ctx context.Context) {
	fs := flag.NewFlagSet("record get", flag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to TOML configuration file")
	scope := fs.String("scope", "", "mailbox scope")
	mode := fs.String("mode", "uid", "addressing mode (uid or seq)")
	fs.Parse(os.Args[3:])

	normalized, m, err := parseScopeMode(*scope, *mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	records := openStore(ctx, *configPath)
	defer records.Close()

	rec, err := records.Get(ctx, store.KeyFor(normalized, m))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	set, err := msgset.FromRecord(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	n, _ := set.Count()
	fmt.Printf("%s (%d members)\n", set.CompactString(), n)
}

func handleRecordDelete(ctx context.Context) {
	fs := flag.NewFlagSet("record delete", flag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to TOML configuration file")
	scope := fs.String("scope", "", "mailbox scope")
	mode := fs.String("mode", "uid", "addressing mode (uid or seq)")
	fs.Parse(os.Args[3:])

	normalized, m, err := parseScopeMode(*scope, *mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	records := openStore(ctx, *configPath)
	defer records.Close()

	key := store.KeyFor(normalized, m)
	if err := records.Delete(ctx, key); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %q\n", key)
}

func handleRecordList(ctx context.Context) {
	fs := flag.NewFlagSet("record list", flag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to TOML configuration file")
	prefix := fs.String("prefix", "", "key prefix filter")
	fs.Parse(os.Args[3:])

	records := openStore(ctx, *configPath)
	defer records.Close()

	keys, err := records.List(ctx, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, key := range keys {
		fmt.Println(key)
	}
}
