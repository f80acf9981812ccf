// Command msgset-admin is the operator tool for the set engine: encode and
// decode compact sets, run set algebra, plan batches, manage stored
// records, and drive batched IMAP operations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]
	switch command {
	case "encode":
		handleEncode()
	case "decode":
		handleDecode()
	case "union", "intersect", "difference":
		handleAlgebra(command)
	case "batch":
		handleBatch()
	case "record":
		handleRecordCommand(ctx)
	case "imap-search":
		handleIMAPSearch(ctx)
	case "imap-move":
		handleIMAPMove(ctx)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`msgset Admin Tool

Usage:
  msgset-admin <command> [options]

Commands:
  encode       Encode identifiers into compact range notation
  decode       Expand compact range notation into identifiers
  union        Union of two compact sets
  intersect    Intersection of two compact sets
  difference   Difference of two compact sets
  batch        Split a compact set into bounded chunks
  record       Manage stored records (put/get/delete/list)
  imap-search  Search a mailbox and print (or store) the matching UID set
  imap-move    Move a UID set to another mailbox in batches
  help         Show this help message

Examples:
  msgset-admin encode --ids 1,2,3,5,6,7,10
  msgset-admin decode --compact 1:3,5:7,10
  msgset-admin union --scope INBOX --mode uid --a 1:4 --b 3:6
  msgset-admin batch --scope INBOX --mode uid --compact 1:95 --size 10
  msgset-admin record list --config config.toml --prefix uid/
  msgset-admin imap-search --config config.toml --mailbox INBOX --unseen --store
  msgset-admin imap-move --config config.toml --mailbox INBOX --dest Archive --all
`)
}
