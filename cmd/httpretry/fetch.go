package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"httpretry/pkg/transport"
)

var (
	fetchMethod  string
	fetchHeaders []string
	fetchData    string
	fetchOutput  string
	fetchInclude bool
	fetchFail    bool
)

// fetchCmd sends one request with retries
var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Send one request, retrying per the configured budgets",
	Long: `Send one HTTP request and retry it according to the retry policy.

The final response is written to stdout (or --output) whatever its status.
A transport failure that exhausts its budget exits with code 1. With --fail,
a final status of 400 or above exits with code 22.`,
	Example: `  httpretry fetch https://api.example.com/items
  httpretry fetch -X POST -H 'Content-Type: application/json' -d @body.json https://api.example.com/items
  httpretry fetch --retries 503=5,TIMEOUT=0 --timeout 2s https://api.example.com/slow`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchMethod, "request", "X", http.MethodGet, "HTTP method")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaders, "header", "H", nil, "request header 'Name: value' (repeatable)")
	fetchCmd.Flags().StringVarP(&fetchData, "data", "d", "", "request body; @file reads a file, @- reads stdin")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "write the body to this file instead of stdout")
	fetchCmd.Flags().BoolVarP(&fetchInclude, "include", "i", false, "print the status line and headers before the body")
	fetchCmd.Flags().BoolVarP(&fetchFail, "fail", "f", false, "exit with code 22 when the final status is 400 or above")
	addPolicyFlags(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	target := args[0]

	method := fetchMethod
	if fetchData != "" && !cmd.Flags().Changed("request") {
		method = http.MethodPost
	}
	req, err := buildRequest(method, fetchHeaders, fetchData, cmd.InOrStdin())
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := s.client.Do(ctx, target, req)
	if err != nil {
		return withExitCode(exitError, fmt.Errorf("request failed: %w", err))
	}

	out := cmd.OutOrStdout()
	if fetchOutput != "" {
		f, err := os.Create(fetchOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := writeResponse(out, resp, fetchInclude); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}

	if fetchFail && resp.StatusCode >= 400 {
		return withExitCode(exitStatus, fmt.Errorf("server returned %s", statusText(resp)))
	}
	return nil
}

// buildRequest assembles the request sent on every attempt
func buildRequest(method string, headers []string, data string, stdin io.Reader) (*transport.Request, error) {
	req := &transport.Request{
		Method: strings.ToUpper(method),
		Header: make(http.Header),
	}

	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", h)
		}
		req.Header.Add(name, strings.TrimSpace(value))
	}

	body, err := readData(data, stdin)
	if err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

func readData(data string, stdin io.Reader) ([]byte, error) {
	switch {
	case data == "":
		return nil, nil
	case data == "@-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read body from stdin: %w", err)
		}
		return b, nil
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
		return b, nil
	default:
		return []byte(data), nil
	}
}

func writeResponse(w io.Writer, resp *transport.Response, include bool) error {
	if include {
		if _, err := fmt.Fprintf(w, "HTTP %s\n", statusText(resp)); err != nil {
			return err
		}
		names := make([]string, 0, len(resp.Header))
		for name := range resp.Header {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, v := range resp.Header[name] {
				if _, err := fmt.Fprintf(w, "%s: %s\n", name, v); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	_, err := w.Write(resp.Body)
	return err
}

func statusText(resp *transport.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
