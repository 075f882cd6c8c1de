// Package budget names the keys of a retry budget table and normalises their
// spelling. It has no dependencies so that both the retry engine and the
// configuration layer can share it.
package budget

import "strings"

// Synthetic keys for transport failures
const (
	// Timeout budgets attempts aborted by their per-attempt deadline
	Timeout = "TIMEOUT"
	// NetworkIssue budgets transport failures other than deadline aborts
	NetworkIssue = "NETWORK_ISSUE"
)

// Normalize returns the canonical spelling of key. Case and surrounding space
// are ignored, and underscores are ignored for the synthetic keys, so
// "timeout", "network_issue" and "networkIssue" all resolve.
func Normalize(key string) string {
	k := strings.ToUpper(strings.TrimSpace(key))
	switch strings.ReplaceAll(k, "_", "") {
	case "TIMEOUT":
		return Timeout
	case "NETWORKISSUE":
		return NetworkIssue
	}
	return k
}

// Valid reports whether key names a status code ("503"), a status class
// ("5XX") or one of the synthetic keys.
func Valid(key string) bool {
	k := Normalize(key)
	switch k {
	case Timeout, NetworkIssue:
		return true
	}
	if len(k) != 3 || k[0] < '1' || k[0] > '5' {
		return false
	}
	if k[1:] == "XX" {
		return true
	}
	return k[1] >= '0' && k[1] <= '9' && k[2] >= '0' && k[2] <= '9'
}
