package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteStorageGuide explains where credentials live and how they are matched
func WriteStorageGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "CREDENTIAL STORAGE")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tokens are bound to a host and sent as 'Authorization: <scheme> <token>'")
	fmt.Fprintln(w, "on every attempt to that host. Stores are tried in this order:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. System keychain (macOS Keychain, Windows Credential Manager,")
	fmt.Fprintln(w, "     Secret Service on Linux) when available")
	fmt.Fprintln(w, "  2. Encrypted file credentials.enc in the config directory")
	fmt.Fprintf(w, "     (set %s to choose the passphrase)\n", EnvPassphrase)
	fmt.Fprintf(w, "  3. %s, scoped by %s (all hosts when unset)\n", EnvToken, EnvHost)
	fmt.Fprintf(w, "     with the scheme from %s (default %s)\n", EnvScheme, DefaultScheme)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "An explicit Authorization header on the request always wins.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
