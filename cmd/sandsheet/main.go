// Command sandsheet runs Python scripts against a spreadsheet document
// under a deny-by-default sandbox policy.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"sandsheet/eventbus"
	"sandsheet/ledger"
	"sandsheet/monitor"
	"sandsheet/policy"
	"sandsheet/replcli"
	"sandsheet/runtime"
	"sandsheet/supervisor"
	"sandsheet/workbook"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	switch sub {
	case "-h", "--help", "help":
		usage()
		return
	case "run":
		os.Exit(runCommand(os.Args[2:]))
	case "repl":
		os.Exit(replCommand(os.Args[2:]))
	case "serve":
		os.Exit(serveCommand(os.Args[2:]))
	case "events":
		os.Exit(eventsCommand(os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", sub)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  sandsheet <command> [arguments]\n")
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  run <file.py>        execute a script against a fresh in-memory workbook\n")
	fmt.Fprintf(os.Stderr, "  repl                 start an interactive sandboxed session\n")
	fmt.Fprintf(os.Stderr, "  serve [addr]         start the live execution monitor dashboard (default :8090)\n")
	fmt.Fprintf(os.Stderr, "  events [addr]        start the ZeroMQ event bus publisher (default tcp://127.0.0.1:5590)\n")
}

func parsePolicyFlags(fs *flag.FlagSet) *policy.Config {
	cfg := &policy.Config{}
	var fsMode, netMode, allowlist string
	var timeoutMillis, maxMemoryMB int64
	fs.StringVar(&fsMode, "filesystem", "none", "filesystem mode: none|read|read_write")
	fs.StringVar(&netMode, "network", "none", "network mode: none|allowlist|unrestricted")
	fs.StringVar(&allowlist, "network-allowlist", "", "comma-separated allowlisted hosts")
	fs.Int64Var(&timeoutMillis, "timeout-ms", 5000, "wall-clock timeout in milliseconds")
	fs.Int64Var(&maxMemoryMB, "max-memory-mb", 256, "memory limit in megabytes")
	fs.Parse(os.Args[2:])

	cfg.Filesystem = policy.FilesystemMode(fsMode)
	cfg.Network = policy.NetworkMode(netMode)
	if allowlist != "" {
		cfg.NetworkAllowlist = strings.Split(allowlist, ",")
	}
	cfg.TimeoutMillis = timeoutMillis
	cfg.MaxMemoryBytes = maxMemoryMB * 1 << 20
	return cfg
}

func runCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfg := parsePolicyFlags(fs)
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "usage: sandsheet run [flags] <file.py>")
		return 2
	}
	scriptBytes, err := os.ReadFile(rest[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "read script: %v\n", err)
		return 1
	}

	doc := workbook.NewInMemory()
	sup := &supervisor.Supervisor{}
	hooks := runtime.Hooks{}
	if dsn := os.Getenv("SANDSHEET_LEDGER_DSN"); dsn != "" {
		led, err := ledger.Open(context.Background(), dsn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ledger: %v\n", err)
		} else {
			defer led.Close()
			start := time.Now()
			hooks.RecordLog = func(script string, result supervisor.ExecutionResult, execErr error) {
				msg := ""
				if execErr != nil {
					msg = execErr.Error()
				}
				led.Write(context.Background(), ledger.Record{
					Script:         script,
					Filesystem:     string(cfg.Filesystem),
					Network:        string(cfg.Network),
					ExitKind:       result.ExitKind,
					ExitCode:       result.ExitCode,
					FailureMessage: msg,
					StartedAt:      start,
					FinishedAt:     time.Now(),
				})
			}
		}
	}
	rt := runtime.New(doc, sup, hooks)
	defer rt.Destroy()

	result, err := rt.Execute(context.Background(), policy.Resolve(*cfg), string(scriptBytes))
	fmt.Fprint(os.Stdout, result.Stdout)
	fmt.Fprint(os.Stderr, result.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "execute: %v\n", err)
		return 1
	}
	if result.ExitKind != supervisor.ExitNormal {
		fmt.Fprintf(os.Stderr, "sandsheet: %s\n", result.ExitKind)
		return 1
	}
	return 0
}

func replCommand(args []string) int {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	cfg := parsePolicyFlags(fs)

	doc := workbook.NewInMemory()
	sup := &supervisor.Supervisor{}
	rt := runtime.New(doc, sup, runtime.Hooks{})
	defer rt.Destroy()

	replcli.Start(context.Background(), os.Stdin, os.Stdout, rt, policy.Resolve(*cfg))
	return 0
}

func serveCommand(args []string) int {
	addr := ":8090"
	if len(args) > 0 {
		addr = normalizeAddr(args[0])
	}
	dashboard := monitor.NewDashboard()
	http.HandleFunc("/ws", dashboard.HandleWebSocket)
	fmt.Fprintf(os.Stderr, "sandsheet: monitor dashboard listening on %s\n", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		return 1
	}
	return 0
}

func eventsCommand(args []string) int {
	addr := "tcp://127.0.0.1:5590"
	if len(args) > 0 {
		addr = args[0]
	}
	pub, err := eventbus.NewPublisher(context.Background(), addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "events: %v\n", err)
		return 1
	}
	defer pub.Close()
	fmt.Fprintf(os.Stderr, "sandsheet: event bus publishing on %s\n", addr)
	select {}
}

func normalizeAddr(addr string) string {
	addr = strings.Replace(addr, "localhost", "", 1)
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	return addr
}
