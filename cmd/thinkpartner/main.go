// Thinkpartner is a coaching thinking partner. It answers a client in
// conversation with a context assembled from the coach's profile, the
// client's living document, and recent history, and keeps that document
// current by proposing section rewrites for the coach to review.
//
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	thinkpartner init [dir]                      Write an example config
//	thinkpartner serve                           Run the idle-session sweep until interrupted
//	thinkpartner client add <name> [email]       Create a client
//	thinkpartner client list                     List clients
//	thinkpartner thread <client> [title]         Start a conversation thread
//	thinkpartner chat <client> <thread> <text>   Send a message and print the reply
//	thinkpartner end <client>                    End the session and synthesize
//	thinkpartner assemble <client> <thread> [text]  Print the assembled context
//	thinkpartner sections <client>               Show the living document
//	thinkpartner accept <section>                Keep a pending AI rewrite
//	thinkpartner revert <section>                Discard a pending AI rewrite
//	thinkpartner edit <section> <text>           Replace section content as the coach
//	thinkpartner [-reset] synthesize <client>    Run session synthesis now
//	thinkpartner checkpoints                     Show synthesis checkpoints
//	thinkpartner gaps <client>                   Show thin document sections
//	thinkpartner attach <client> <file>          Store a client file
//	thinkpartner reference <client> <title> <file>  Store reference material
//	thinkpartner exercise load <file.yaml>       Define a guided exercise
//	thinkpartner exercise start <client> <thread> <id>
//	thinkpartner exercise next <client> <thread>
//	thinkpartner sweep                           Run one idle-session sweep
//	thinkpartner version                         Print version information
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/nugget/thinkpartner/internal/buildinfo"
	"github.com/nugget/thinkpartner/internal/config"
)

// main constructs the OS-level environment (context, stdio, argv) and
// delegates immediately to [run].
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// options are the global flags shared by every command.
type options struct {
	configPath string
	outputFmt  string
	speaker    string
	title      string
	reset      bool
}

// run is the real entry point for the thinkpartner command. Arguments
// are parsed by hand so run can be called concurrently from tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var opts options
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			opts.configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			opts.configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			opts.outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			opts.outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			opts.outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-as" && i+1 < len(args):
			opts.speaker = args[i+1]
			i++
		case args[i] == "-title" && i+1 < len(args):
			opts.title = args[i+1]
			i++
		case args[i] == "-reset":
			opts.reset = true
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if opts.outputFmt == "" {
		opts.outputFmt = "text"
	}
	if opts.outputFmt != "text" && opts.outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", opts.outputFmt)
	}

	switch command {
	case "":
		return printUsage(stdout)
	case "version":
		return runVersion(stdout, opts.outputFmt)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	}

	cmd, ok := commands[command]
	if !ok {
		return fmt.Errorf("unknown command: %s", command)
	}
	if len(cmdArgs) < cmd.minArgs {
		return fmt.Errorf("usage: thinkpartner %s", cmd.usage)
	}

	a, err := openApp(ctx, stderr, opts.configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd.run(ctx, a, stdout, opts, cmdArgs)
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := map[string]string{
		"version":    buildinfo.Version,
		"git_commit": buildinfo.GitCommit,
		"build_time": buildinfo.BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		fmt.Fprintf(w, "  %-12s %s\n", k+":", info[k])
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Thinkpartner - coaching thinking partner")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: thinkpartner [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  init [dir]   Write an example config.yaml (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	for _, name := range commandNames() {
		fmt.Fprintf(w, "  %-12s %s\n", name, commands[name].help)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w, "  -as <speaker>     Speaker for chat: client (default) or coach")
	fmt.Fprintln(w, "  -title <title>    New title for edit")
	fmt.Fprintln(w, "  -reset            Clear the checkpoint before synthesize")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/thinkpartner/config.yaml, /etc/thinkpartner/config.yaml")
	return nil
}

// loadConfig finds, loads, and validates the config file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfgPath, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
