package helpers

import (
	"fmt"
	"strings"
)

// MailboxDelimiter separates mailbox path components.
const MailboxDelimiter = "/"

// NormalizeScope canonicalizes a mailbox name used as a set scope: trims
// whitespace, collapses repeated delimiters and strips any leading or
// trailing delimiter. The special name INBOX is case-insensitive per RFC
// 3501 and normalizes to upper case.
func NormalizeScope(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("scope cannot be empty")
	}
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("scope contains NUL byte")
	}

	parts := strings.Split(name, MailboxDelimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("scope %q has no path components", name)
	}

	if strings.EqualFold(out[0], "INBOX") {
		out[0] = "INBOX"
	}
	return strings.Join(out, MailboxDelimiter), nil
}
