package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/migadu/msgset/helpers"
	"github.com/migadu/msgset/msgset"
)

func parseIDList(s string) ([]uint64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]uint64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid identifier %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseScopeMode(scope, mode string) (string, msgset.Mode, error) {
	normalized, err := helpers.NormalizeScope(scope)
	if err != nil {
		return "", 0, err
	}
	m, err := msgset.ParseMode(mode)
	if err != nil {
		return "", 0, err
	}
	return normalized, m, nil
}

func handleEncode() {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	ids := fs.String("ids", "", "comma-separated identifiers")
	fs.Parse(os.Args[2:])

	list, err := parseIDList(*ids)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(msgset.EncodeRanges(list))
}

func handleDecode() {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	compact := fs.String("compact", "", "compact range notation, e.g. 1:3,5:7,10")
	fs.Parse(os.Args[2:])

	ids, err := msgset.DecodeRanges(*compact)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

func handleAlgebra(op string) {
	fs := flag.NewFlagSet(op, flag.ExitOnError)
	scope := fs.String("scope", "INBOX", "mailbox scope")
	mode := fs.String("mode", "uid", "addressing mode (uid or seq)")
	a := fs.String("a", "", "left operand in compact notation")
	b := fs.String("b", "", "right operand in compact notation")
	fs.Parse(os.Args[2:])

	normalized, m, err := parseScopeMode(*scope, *mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	setA, err := msgset.Decode(normalized, m, *a)
	if err == nil {
		var setB *msgset.Set
		setB, err = msgset.Decode(normalized, m, *b)
		if err == nil {
			var result *msgset.Set
			switch op {
			case "union":
				result, err = msgset.Union(setA, setB)
			case "intersect":
				result, err = msgset.Intersect(setA, setB)
			case "difference":
				result, err = msgset.Difference(setA, setB)
			}
			if err == nil {
				n, _ := result.Count()
				fmt.Printf("%s (%d members)\n", result.CompactString(), n)
				return
			}
		}
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func handleBatch() {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	scope := fs.String("scope", "INBOX", "mailbox scope")
	mode := fs.String("mode", "uid", "addressing mode (uid or seq)")
	compact := fs.String("compact", "", "set in compact notation")
	size := fs.Int("size", 500, "maximum chunk size")
	fs.Parse(os.Args[2:])

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
	batcher, err := msgset.NewBatcher(set, *size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for i, chunk := range batcher.Chunks() {
		n, _ := chunk.Count()
		fmt.Printf("chunk %d: %s (%d members)\n", i+1, chunk.CompactString(), n)
	}
}
