package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var refPattern = regexp.MustCompile(`^([a-zA-Z]+)[\s-]*(\d+)$`)

// SplitRef splits an object reference like "net20", "NET 20" or "net-20"
// into a lower-case tag and an id.
func SplitRef(ref string) (string, int64, error) {
	m := refPattern.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return "", 0, fmt.Errorf("unable to split string %q", ref)
	}
	pk, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("unable to split string %q: %w", ref, err)
	}
	return strings.ToLower(m[1]), pk, nil
}

// PrettySpeed renders a port speed given in Mbit/s: 10000 -> "10G".
// Zero renders as "".
func PrettySpeed(mbps int64) string {
	switch {
	case mbps == 0:
		return ""
	case mbps >= 1000000:
		return fmt.Sprintf("%dT", mbps/1000000)
	case mbps >= 1000:
		return fmt.Sprintf("%dG", mbps/1000)
	}
	return fmt.Sprintf("%dM", mbps)
}
