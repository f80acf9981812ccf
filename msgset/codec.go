package msgset

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// EncodeRanges encodes a list of identifiers into compact range notation,
// e.g. [1 2 3 5 6 7 10] -> "1:3,5:7,10". The input is sorted and
// deduplicated defensively; callers holding a Set should prefer
// Set.CompactString which caches the result.
//
// The grammar is the IMAP sequence-set subset used on the wire:
//
//	Set   := "" | Token ("," Token)*
//	Token := Int | Int ":" Int
//
// Integers are base-10, no leading zeros, no whitespace. An empty input
// encodes to the empty string.
func EncodeRanges(ids []uint64) string {
	return encodeSorted(normalize(ids))
}

// encodeSorted assumes ids is ascending and deduplicated.
func encodeSorted(ids []uint64) string {
	if len(ids) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(ids); {
		// Extend the run while values stay consecutive.
		j := i
		for j+1 < len(ids) && ids[j+1] == ids[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(ids[i], 10))
		if j > i {
			// A run of two is still "a:b", never two singles.
			b.WriteByte(':')
			b.WriteString(strconv.FormatUint(ids[j], 10))
		}
		i = j + 1
	}
	return b.String()
}

// DecodeRanges parses compact range notation back into an ascending,
// deduplicated identifier list. Any malformed token fails the whole decode;
// partial results are never returned. The empty string decodes to an empty
// list, round-tripping EncodeRanges(nil).
func DecodeRanges(s string) ([]uint64, error) {
	if s == "" {
		return nil, nil
	}

	tokens := strings.Split(s, ",")
	out := make([]uint64, 0, len(tokens))
	for _, tok := range tokens {
		if i := strings.IndexByte(tok, ':'); i >= 0 {
			lo, err := parseIdentifier(tok[:i])
			if err != nil {
				return nil, fmt.Errorf("%w %q: %v", ErrMalformedRange, tok, err)
			}
			hi, err := parseIdentifier(tok[i+1:])
			if err != nil {
				return nil, fmt.Errorf("%w %q: %v", ErrMalformedRange, tok, err)
			}
			if lo > hi {
				return nil, fmt.Errorf("%w %q: low bound exceeds high bound", ErrMalformedRange, tok)
			}
			for v := lo; ; v++ {
				out = append(out, v)
				if v == hi {
					break
				}
			}
			continue
		}

		v, err := parseIdentifier(tok)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrMalformedToken, tok, err)
		}
		out = append(out, v)
	}
	return normalize(out), nil
}

func parseIdentifier(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty integer")
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, fmt.Errorf("leading zero")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a base-10 integer")
	}
	if v == 0 {
		return 0, fmt.Errorf("zero is not a valid identifier")
	}
	return v, nil
}

// normalize returns an ascending, deduplicated copy of ids.
func normalize(ids []uint64) []uint64 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint64, len(ids))
	copy(out, ids)
	slices.Sort(out)
	return slices.Compact(out)
}
