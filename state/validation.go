package state

import (
	"fmt"
	"net"
	"regexp"
	"slices"
	"strings"
)

var namePattern = regexp.MustCompile("^[0-9A-Za-z._-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 64 {
		return fmt.Errorf("len(\"%s\") = %d > 64 is too long", s, len(s))
	}
	return nil
}

func LinkValidator(s string) error {
	if s == "" {
		return fmt.Errorf("link must not be empty")
	}
	if LinkId(s) == LocalLink {
		return fmt.Errorf("%s is reserved", s)
	}
	if strings.ContainsAny(s, " \t\r\n|") {
		return fmt.Errorf("link %q must not contain whitespace or '|'", s)
	}
	for _, scheme := range []string{"tcp://", "tcp-listen://"} {
		if addr, ok := strings.CutPrefix(s, scheme); ok {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				return fmt.Errorf("link %s: %w", s, err)
			}
		}
	}
	return nil
}

func NodeConfigValidator(node *LocalCfg) error {
	err := NameValidator(string(node.Id))
	if err != nil {
		return err
	}
	seen := make([]LinkId, 0, len(node.Links))
	for _, l := range node.Links {
		if err := LinkValidator(string(l)); err != nil {
			return err
		}
		if slices.Contains(seen, l) {
			return fmt.Errorf("duplicate link: %s", l)
		}
		seen = append(seen, l)
	}
	if node.Baud < 0 {
		return fmt.Errorf("baud must be positive, got %d", node.Baud)
	}
	if node.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", node.MaxRetries)
	}
	return nil
}
