package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/publicsuffix"

	"portfel/internal/api"
	"portfel/internal/cli"
)

type options struct {
	backendURL string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "portfelctl",
		Short:         "Terminal client of the portfel backend",
		Long:          `portfelctl prints currency rates and account summaries from the portfel backend API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.backendURL, "backend", envOr("PORTFEL_BACKEND_URL", "http://localhost:8090"), "backend API base URL")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "timeout of a single backend call")

	cmd.AddCommand(ratesCmd(opts))
	cmd.AddCommand(summaryCmd(opts))
	return cmd
}

// backend returns a client bound to a fresh cookie jar.
func (o *options) backend() (*api.Backend, http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, nil, fmt.Errorf("cookie jar: %w", err)
	}
	up := api.NewUpstream("backend", o.backendURL, api.Options{Timeout: o.timeout, BreakerFailures: 1})
	return api.NewBackend(up), jar, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cli.LoadEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
