// wxf - WXF codec CLI tool
//
// Usage:
//
//	wxf encode [--from json|yaml|cbor|msgpack|wl] [--compress] [-o file] [file]
//	wxf decode [--to wl|json|cbor|msgpack] [--indent] [file...]
//	wxf dump [file]
//	wxf version
//
// If no file is given, reads from stdin. Defaults can be set from the
// environment: WXF_COMPRESS, WXF_MAX_DEPTH, WXF_LOG_LEVEL and WXF_COLOR
// (auto, always, never).
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
)

const version = "0.1.0"

// config holds the environment defaults.
type config struct {
	Compress bool   `env:"WXF_COMPRESS" envDefault:"false"`
	MaxDepth int    `env:"WXF_MAX_DEPTH" envDefault:"1024"`
	LogLevel string `env:"WXF_LOG_LEVEL" envDefault:"warn"`
	Color    string `env:"WXF_COLOR" envDefault:"auto"`
}

// app is one CLI invocation.
type app struct {
	cfg    config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	tty    bool // stdout is a terminal
	log    *slog.Logger
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "wxf: environment: %v\n", err)
		os.Exit(2)
	}

	a := newApp(cfg, os.Stdin, os.Stdout, os.Stderr)
	a.tty = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	if err := a.run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "wxf: %v\n", err)
		os.Exit(1)
	}
}

func newApp(cfg config, stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		cfg:    cfg,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		log: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
			Level: parseLevel(cfg.LogLevel),
		})),
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return level
}

var errUsage = errors.New("usage")

func (a *app) run(args []string) error {
	if len(args) == 0 {
		a.printUsage()
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "encode":
		return a.cmdEncode(rest)
	case "decode":
		return a.cmdDecode(rest)
	case "dump":
		return a.cmdDump(rest)
	case "version", "-v", "--version":
		fmt.Fprintf(a.stdout, "wxf %s\n", version)
		return nil
	case "help", "-h", "--help":
		a.printUsage()
		return nil
	}
	fmt.Fprintf(a.stderr, "unknown command: %s\n", cmd)
	a.printUsage()
	return errUsage
}

func (a *app) printUsage() {
	fmt.Fprint(a.stderr, `wxf - WXF codec CLI tool

Usage:
  wxf encode [options] [file]     Convert JSON, YAML, CBOR, MessagePack or InputForm to WXF
  wxf decode [options] [file...]  Convert WXF to InputForm, JSON, CBOR or MessagePack
  wxf dump [file]                 List the tokens of each message with their offsets
  wxf version                     Print version info

Encode options:
  --from FORMAT     input format: json, yaml, cbor, msgpack, wl (default json)
  --compress        zlib-compress the body
  -o, --output FILE write to FILE instead of stdout
  --max-depth N     nesting limit

Decode options:
  --to FORMAT       output format: wl, json, cbor, msgpack (default wl)
  --indent          multi-line output for wl and json
  --max-depth N     nesting limit

If no file is given, reads from stdin. Files given to decode are decoded
concurrently and printed in argument order.

Examples:
  echo '{"b":1,"a":[2.5,true]}' | wxf encode > data.wxf
  wxf decode data.wxf
  # Output: <|"b" -> 1, "a" -> {2.5, True}|>

  wxf decode --to json --indent data.wxf
`)
}

// newFlagSet returns a flag set that reports errors through the returned
// error instead of exiting.
func (a *app) newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage of wxf %s:\n", name)
		fs.PrintDefaults()
	}
	return fs
}

func (a *app) parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errUsage
		}
		return fmt.Errorf("%s: %w", fs.Name(), err)
	}
	return nil
}

// open returns the named input, or stdin for "" and "-".
func (a *app) open(name string) (io.ReadCloser, error) {
	if name == "" || name == "-" {
		return io.NopCloser(a.stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

func (a *app) readInput(name string) ([]byte, error) {
	r, err := a.open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func inputName(name string) string {
	if name == "" || name == "-" {
		return "<stdin>"
	}
	return name
}

func normalizeFormat(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
