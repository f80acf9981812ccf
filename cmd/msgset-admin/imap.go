package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/emersion/go-imap/v2"

	"github.com/migadu/msgset/config"
	"github.com/migadu/msgset/imapsource"
	"github.com/migadu/msgset/msgset"
	"github.com/migadu/msgset/store"
)

func dialSource(configPath string) (*imapsource.Source, config.Config) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.IMAP.Addr == "" {
		fmt.Fprintln(os.Stderr, "Error: imap.addr is not configured")
		os.Exit(1)
	}
	src, err := imapsource.Dial(cfg.IMAP)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return src, cfg
}

func handleIMAPSearch(ctx context.Context) {
	fs := flag.NewFlagSet("imap-search", flag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to TOML configuration file")
	mailbox := fs.String("mailbox", "INBOX", "mailbox to search")
	unseen := fs.Bool("unseen", false, "match only unseen messages")
	saveRecord := fs.Bool("store", false, "persist the result to the record store")
	fs.Parse(os.Args[2:])

	src, cfg := dialSource(*configPath)
	defer src.Close()

	criteria := &imap.SearchCriteria{}
	if *unseen {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}

	set, err := src.SearchUIDs(ctx, *mailbox, criteria)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	n, _ := set.Count()
	fmt.Printf("%s (%d messages)\n", set.CompactString(), n)

	if !*saveRecord {
		return
	}
	rec, err := set.ToRecord()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	records, err := store.Open(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer records.Close()

	key := store.KeyFor(set.Scope(), set.Mode())
	if err := records.Put(ctx, key, rec); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Stored under %q\n", key)
}

func handleIMAPMove(ctx context.Context) {
	fs := flag.NewFlagSet("imap-move", flag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to TOML configuration file")
	mailbox := fs.String("mailbox", "INBOX", "source mailbox")
	dest := fs.String("dest", "", "destination mailbox")
	compact := fs.String("compact", "", "UID set in compact notation")
	all := fs.Bool("all", false, "move every message in the mailbox")
	fs.Parse(os.Args[2:])

	if *dest == "" {
		fmt.Fprintln(os.Stderr, "Error: --dest is required")
		os.Exit(1)
	}
	if *all == (*compact != "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of --all or --compact is required")
		os.Exit(1)
	}

	var set *msgset.Set
	var err error
	if *all {
		set = msgset.All(*mailbox, msgset.ModeUID)
	} else {
		set, err = msgset.Decode(*mailbox, msgset.ModeUID, *compact)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	src, _ := dialSource(*configPath)
	defer src.Close()

	report, err := src.MoveSet(ctx, set, *dest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Moved %d of %d chunks from %q to %q\n",
		report.Succeeded(), len(report.Results), *mailbox, *dest)
	if reportErr := report.Err(); reportErr != nil {
		failed, _ := report.FailedSet()
		if failed != nil {
			fmt.Fprintf(os.Stderr, "Failed UIDs: %s\n", failed.CompactString())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", reportErr)
		os.Exit(1)
	}
}
