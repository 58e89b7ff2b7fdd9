package dsddns

import (
	"fmt"
	"strings"
)

const maxHostnameLen = 253
const maxLabelLen = 63

// HostnameError reports a hostname that failed validation.
type HostnameError struct {
	Hostname string
	Reason   string
}

func (e *HostnameError) Error() string {
	return fmt.Sprintf("invalid hostname %q: %s", e.Hostname, e.Reason)
}

// ValidateHostname checks the shape of a fully qualified hostname. Labels
// are ASCII alphanumerics and hyphens with alphanumeric first and last
// characters; a wildcard is accepted only as the entire first label.
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return &HostnameError{hostname, "empty"}
	}

	if len(hostname) > maxHostnameLen {
		return &HostnameError{hostname, fmt.Sprintf("longer than %d characters", maxHostnameLen)}
	}

	if strings.HasPrefix(hostname, ".") || strings.HasSuffix(hostname, ".") || strings.Contains(hostname, "..") {
		return &HostnameError{hostname, "empty label"}
	}

	labels := strings.Split(hostname, ".")
	if len(labels) < 2 {
		return &HostnameError{hostname, "need at least domain and TLD"}
	}

	for i, label := range labels {
		if len(label) > maxLabelLen {
			return &HostnameError{hostname, fmt.Sprintf("label %q longer than %d characters", label, maxLabelLen)}
		}

		if label == "*" {
			if i != 0 {
				return &HostnameError{hostname, "wildcard allowed only as first label"}
			}
			continue
		}

		if !isAlnum(label[0]) || !isAlnum(label[len(label)-1]) {
			return &HostnameError{hostname, fmt.Sprintf("label %q must start and end alphanumeric", label)}
		}

		for j := 0; j < len(label); j++ {
			if !isAlnum(label[j]) && label[j] != '-' {
				return &HostnameError{hostname, fmt.Sprintf("label %q has invalid character %q", label, label[j])}
			}
		}
	}

	return nil
}

// PartitionHostname splits a hostname into the zone it lives in (the last
// two labels) and the record name inside that zone, empty for the zone
// apex. Multi-label public suffixes like co.uk are not understood.
func PartitionHostname(hostname string) (zone, recordName string, err error) {
	if err := ValidateHostname(hostname); err != nil {
		return "", "", err
	}

	labels := strings.Split(hostname, ".")
	zone = strings.Join(labels[len(labels)-2:], ".")
	recordName = strings.Join(labels[:len(labels)-2], ".")

	return zone, recordName, nil
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
