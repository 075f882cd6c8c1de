package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"httpretry/pkg/auth"
	"httpretry/pkg/ui"
)

var (
	authScheme     string
	authTokenStdin bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage per-host credentials",
	Long: `Manage the Authorization credentials attached when --auth is set.

Credentials are kept in the system keychain when available, otherwise in
an encrypted file in the config directory. A token can also come from the
HTTPRETRY_TOKEN environment variable.`,
}

// authSetCmd stores a credential for a host
var authSetCmd = &cobra.Command{
	Use:   "set <host>",
	Short: "Store a token for a host",
	Long: `Store a token for a host.

The token is read from the terminal without echo, or from stdin with
--token-stdin.`,
	Example: `  httpretry auth set api.example.com
  echo "$TOKEN" | httpretry auth set api.example.com --token-stdin --scheme Token`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSet,
}

// authListCmd lists stored credentials with masked tokens
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

// authDeleteCmd removes a credential
var authDeleteCmd = &cobra.Command{
	Use:     "delete <host>",
	Aliases: []string{"rm"},
	Short:   "Delete the credential for a host",
	Args:    cobra.ExactArgs(1),
	RunE:    runAuthDelete,
}

// authGuideCmd explains the credential stores
var authGuideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain where credentials are stored",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.WriteStorageGuide(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authDeleteCmd)
	authCmd.AddCommand(authGuideCmd)

	authSetCmd.Flags().StringVar(&authScheme, "scheme", auth.DefaultScheme, "Authorization scheme")
	authSetCmd.Flags().BoolVar(&authTokenStdin, "token-stdin", false, "read the token from stdin")
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	host := args[0]
	p := ui.NewPrinter(cmd.ErrOrStderr(), noColor, quiet)

	var token string
	var err error
	if authTokenStdin {
		token, err = readLine(cmd.InOrStdin())
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "Token for %s: ", host)
		token, err = readPassword()
	}
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	mgr, err := auth.NewManager()
	if err != nil {
		return err
	}
	cred := &auth.Credential{Host: host, Scheme: authScheme, Token: token}
	if err := mgr.Store(cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	p.Success("Credential stored for " + auth.NormalizeHost(host))
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	mgr, err := auth.NewManager()
	if err != nil {
		return err
	}
	creds, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}

	p := ui.NewPrinter(cmd.OutOrStdout(), noColor, quiet)
	if len(creds) == 0 {
		p.Dim("No credentials stored")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, c := range creds {
		safe := auth.Sanitize(c)
		modified := "-"
		if !safe.LastModified.IsZero() {
			modified = safe.LastModified.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "%s\t%s %s\t%s\n", safe.Host, safe.Scheme, safe.Token, modified)
	}
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	mgr, err := auth.NewManager()
	if err != nil {
		return err
	}
	if err := mgr.Delete(args[0]); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	ui.NewPrinter(cmd.ErrOrStderr(), noColor, quiet).Success("Credential deleted for " + auth.NormalizeHost(args[0]))
	return nil
}

// readPassword reads a line without echo when stdin is a terminal
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}
	return readLine(os.Stdin)
}

func readLine(r io.Reader) (string, error) {
	input, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
