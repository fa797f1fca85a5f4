// Command escli runs a development runtime and talks to one from the shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/codewandler/esclient-go/internal/config"
)

const usage = `usage: escli [-config=<path>] [-log-level=<level>] <command> [<args>]

Configuration flags:

   -config     Path to a yaml, json or toml config file. ESCLIENT_* environment
               variables override its values, e.g. ESCLIENT_TRANSPORT_KIND=grpc.

   -log-level  One of debug, info, warn, error. Logs are written to stderr.

Commands
   runtime     Serve a development runtime over the configured transport
   commit      Commit one event with an explicit event type
   fetch       Print the committed events of an aggregate root instance
   help        Display this help message
`

var (
	configFlag   = flag.String("config", "", "path to config file")
	logLevelFlag = flag.String("log-level", "info", "log level")
)

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	log.SetFlags(0)

	args := flag.Args()
	if len(args) == 0 {
		log.Printf("missing command\n\n")
		fmt.Print(usage)
		os.Exit(2)
	}

	var cmd func(ctx context.Context, env *env, args []string) error
	switch name := args[0]; name {
	case "runtime":
		cmd = runRuntime
	case "commit":
		cmd = runCommit
	case "fetch":
		cmd = runFetch
	case "help":
		fmt.Print(usage)
		return
	default:
		log.Printf("unknown command %q\n\n", name)
		fmt.Print(usage)
		os.Exit(2)
	}

	e, err := newEnv(*configFlag, *logLevelFlag)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, e, args[1:]); err != nil {
		e.log.Error("command failed", slog.String("command", args[0]), slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

// env is shared by all commands.
type env struct {
	cfg config.Config
	log *slog.Logger
	out io.Writer
}

func newEnv(path, level string) (*env, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg: cfg,
		log: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})),
		out: os.Stdout,
	}, nil
}
