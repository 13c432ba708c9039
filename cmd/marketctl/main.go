// marketctl is a command-line client for marketd.
// Usage: marketctl [-server URL] [-identity ID] [-key PEM] <command> [flags]
//
// Environment variables:
//
//	MARKET_URL              - daemon base URL (default http://localhost:8080)
//	MARKET_IDENTITY         - caller identity
//	MARKET_PRIVATE_KEY_PATH - RSA private key used to sign requests; without
//	                          it the identity is sent in X-Caller (dev daemons only)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/rickgao/asset-market/internal/api"
	"github.com/rickgao/asset-market/internal/auth"
	"github.com/rickgao/asset-market/internal/model"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, "marketctl:", err)
		os.Exit(1)
	}
}

// cli carries what every command needs.
type cli struct {
	client   *api.Client
	server   string
	identity model.Identity
	jsonOut  bool
	out      io.Writer
	errOut   io.Writer
	logger   *slog.Logger

	info *api.CollectionsResponse // fetched on first use
}

type command struct {
	summary string
	run     func(c *cli, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"status":   {"show daemon health and hosted collections", (*cli).status},
	"mint":     {"mint an asset", (*cli).mint},
	"approve":  {"approve an operator (the marketplace by default) for an asset", (*cli).approve},
	"transfer": {"transfer an asset", (*cli).transfer},
	"asset":    {"show one asset", (*cli).asset},
	"owned":    {"list the assets an identity holds", (*cli).owned},
	"list":     {"list an asset for sale", (*cli).list},
	"buy":      {"buy a listing", (*cli).buy},
	"cancel":   {"cancel a listing", (*cli).cancel},
	"listing":  {"show one listing, or the active listings", (*cli).listing},
	"deposit":  {"deposit funds", (*cli).deposit},
	"withdraw": {"withdraw funds", (*cli).withdraw},
	"balance":  {"show an account balance", (*cli).balance},
	"events":   {"print journaled events", (*cli).events},
	"watch":    {"stream live events", (*cli).watch},
}

func run(ctx context.Context, args []string, out, errOut io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("marketctl", flag.ContinueOnError)
	fs.SetOutput(errOut)
	server := fs.String("server", envOr(getenv, "MARKET_URL", "http://localhost:8080"), "marketd base URL")
	identity := fs.String("identity", getenv("MARKET_IDENTITY"), "caller identity")
	keyPath := fs.String("key", getenv("MARKET_PRIVATE_KEY_PATH"), "RSA private key PEM used to sign requests")
	jsonOut := fs.Bool("json", false, "print responses as JSON")
	verbose := fs.Bool("verbose", false, "log requests and retries")
	fs.Usage = func() {
		fmt.Fprintf(errOut, "usage: marketctl [flags] <command> [command flags]\n\ncommands:\n%s\nflags:\n", commandList())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no command given")
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	opts := []api.ClientOption{api.WithLogger(logger)}
	if *keyPath != "" {
		creds, err := auth.LoadCredentials(*identity, *keyPath)
		if err != nil {
			return err
		}
		opts = append(opts, api.WithCredentials(creds))
	} else if *identity != "" {
		opts = append(opts, api.WithCaller(model.Identity(*identity)))
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q; commands:\n%s", name, commandList())
	}

	c := &cli{
		client:   api.NewClient(*server, opts...),
		server:   *server,
		identity: model.Identity(*identity),
		jsonOut:  *jsonOut,
		out:      out,
		errOut:   errOut,
		logger:   logger,
	}
	return cmd.run(c, ctx, fs.Args()[1:])
}

func commandList() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "  %-9s %s\n", name, commands[name].summary)
	}
	return b.String()
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// flags returns a flag set for a subcommand that reports errors to errOut.
func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("marketctl "+name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

// self returns the caller identity or an error when none is configured.
func (c *cli) self() (model.Identity, error) {
	if c.identity.IsNull() {
		return "", errors.New("an identity is required (-identity or MARKET_IDENTITY)")
	}
	return c.identity, nil
}

// print writes v as JSON with -json, otherwise calls text.
func (c *cli) print(v any, text func(w io.Writer)) error {
	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(c.out)
	return nil
}

// currency returns the daemon's settlement currency, fetched once.
func (c *cli) currency(ctx context.Context) (*api.CollectionsResponse, error) {
	if c.info == nil {
		info, err := c.client.Collections(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch currency: %w", err)
		}
		c.info = info
	}
	return c.info, nil
}

func (c *cli) parseAmount(ctx context.Context, s string) (int64, error) {
	info, err := c.currency(ctx)
	if err != nil {
		return 0, err
	}
	return model.ParseAmount(s, info.Decimals)
}

func (c *cli) formatAmount(ctx context.Context, units int64) string {
	info, err := c.currency(ctx)
	if err != nil {
		return fmt.Sprintf("%d units", units)
	}
	return model.FormatAmount(units, info.Decimals) + " " + info.Currency
}
