package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/Neumenon/wxf/bridge"
	"github.com/Neumenon/wxf/expr"
	"github.com/Neumenon/wxf/wxf"
)

// ============================================================
// encode
// ============================================================

func (a *app) cmdEncode(args []string) error {
	fs := a.newFlagSet("encode")
	from := fs.String("from", "json", "input format: json, yaml, cbor, msgpack, wl")
	compress := fs.Bool("compress", a.cfg.Compress, "zlib-compress the body")
	output := fs.StringP("output", "o", "", "output file (default stdout)")
	maxDepth := fs.Int("max-depth", a.cfg.MaxDepth, "nesting limit")
	if err := a.parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return fmt.Errorf("encode: at most one input file, got %d", fs.NArg())
	}

	data, err := a.readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	v, err := convertInput(normalizeFormat(*from), data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", inputName(fs.Arg(0)), err)
	}

	out, err := wxf.Marshal(v,
		wxf.WithCompression(*compress),
		wxf.WithMaxDepth(*maxDepth),
		wxf.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("encode %s: %w", inputName(fs.Arg(0)), err)
	}
	a.log.Debug("encoded", "input", inputName(fs.Arg(0)), "bytes", len(out), "compressed", *compress)

	if *output == "" {
		_, err = a.stdout.Write(out)
		return err
	}
	if err := os.WriteFile(*output, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// convertInput turns source bytes into a value wxf.Marshal accepts.
func convertInput(format string, data []byte) (any, error) {
	switch format {
	case "json":
		return bridge.FromJSON(data)
	case "yaml", "yml":
		return bridge.FromYAML(data)
	case "cbor":
		return bridge.FromCBOR(data)
	case "msgpack", "messagepack":
		return bridge.FromMsgpack(data)
	case "wl", "m":
		return expr.Parse(string(data))
	}
	return nil, fmt.Errorf("unknown input format %q", format)
}

// ============================================================
// decode
// ============================================================

func (a *app) cmdDecode(args []string) error {
	fs := a.newFlagSet("decode")
	to := fs.String("to", "wl", "output format: wl, json, cbor, msgpack")
	indent := fs.Bool("indent", false, "multi-line output for wl and json")
	maxDepth := fs.Int("max-depth", a.cfg.MaxDepth, "nesting limit")
	if err := a.parseFlags(fs, args); err != nil {
		return err
	}

	r := renderer{
		format: normalizeFormat(*to),
		indent: *indent,
		color:  a.useColor(),
	}
	if err := r.validate(); err != nil {
		return err
	}
	opts := []wxf.DecodeOption{wxf.WithMaxDepth(*maxDepth), wxf.WithLogger(a.log)}

	files := fs.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}
	stdin := 0
	for _, name := range files {
		if name == "-" {
			stdin++
		}
	}
	if stdin > 1 {
		return errors.New("decode: stdin (-) given more than once")
	}

	results := make([][]byte, len(files))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := a.readInput(name)
			if err != nil {
				return err
			}
			out, err := r.renderAll(data, opts)
			if err != nil {
				return fmt.Errorf("decode %s: %w", inputName(name), err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, out := range results {
		if _, err := a.stdout.Write(out); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) useColor() bool {
	switch normalizeFormat(a.cfg.Color) {
	case "always":
		return true
	case "never":
		return false
	}
	return a.tty
}

// renderer writes decoded messages in one output format.
type renderer struct {
	format string
	indent bool
	color  bool
}

func (r renderer) validate() error {
	switch r.format {
	case "wl", "json", "cbor", "msgpack":
		return nil
	}
	return fmt.Errorf("unknown output format %q", r.format)
}

// renderAll decodes every message in data.
func (r renderer) renderAll(data []byte, opts []wxf.DecodeOption) ([]byte, error) {
	var out bytes.Buffer
	dec := wxf.NewDecoder(bytes.NewReader(data), opts...)
	for n := 0; ; n++ {
		var err error
		if r.format == "wl" {
			err = r.renderExpr(&out, dec)
		} else {
			err = r.renderNative(&out, dec)
		}
		if errors.Is(err, io.EOF) {
			if n == 0 {
				return nil, errors.New("no WXF message in input")
			}
			return out.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", n+1, err)
		}
	}
}

func (r renderer) renderExpr(w *bytes.Buffer, dec *wxf.Decoder) error {
	e, err := dec.Decode()
	if err != nil {
		return err
	}
	opts := expr.DefaultFormatOptions()
	if r.indent {
		opts = expr.PrettyFormatOptions()
	}
	if r.color {
		opts.Highlight = highlight
	}
	w.WriteString(expr.FormatWithOptions(e, opts))
	w.WriteByte('\n')
	return nil
}

func (r renderer) renderNative(w *bytes.Buffer, dec *wxf.Decoder) error {
	v, err := wxf.DecodeNext[any](dec, wxf.NativeConsumer{})
	if err != nil {
		return err
	}

	var data []byte
	switch r.format {
	case "json":
		if data, err = bridge.ToJSON(v, r.indent); err == nil {
			data = append(data, '\n')
		}
	case "cbor":
		data, err = bridge.ToCBOR(v)
	case "msgpack":
		data, err = bridge.ToMsgpack(v)
	}
	if err != nil {
		return err
	}
	w.Write(data)
	return nil
}

var (
	symbolColor = newColor(color.FgCyan)
	stringColor = newColor(color.FgGreen)
	numberColor = newColor(color.FgYellow)
)

func newColor(attr color.Attribute) *color.Color {
	c := color.New(attr)
	// Color choice is made by the caller, not by fatih/color's own tty check.
	c.EnableColor()
	return c
}

func highlight(k expr.Kind, text string) string {
	switch k {
	case expr.KindSymbol:
		return symbolColor.Sprint(text)
	case expr.KindString, expr.KindBinaryString:
		return stringColor.Sprint(text)
	case expr.KindInteger, expr.KindReal, expr.KindBigReal:
		return numberColor.Sprint(text)
	}
	return text
}

// ============================================================
// dump
// ============================================================

func (a *app) cmdDump(args []string) error {
	fs := a.newFlagSet("dump")
	maxDepth := fs.Int("max-depth", a.cfg.MaxDepth, "nesting limit")
	if err := a.parseFlags(fs, args); err != nil {
		return err
	}

	data, err := a.readInput(fs.Arg(0))
	if err != nil {
		return err
	}

	var out bytes.Buffer
	var tokens, n int
	started := false
	hook := wxf.WithTokenHook(func(off int, t wxf.Token) {
		if !started {
			fmt.Fprintf(&out, "--- Message %d ---\n", n)
			started = true
		}
		fmt.Fprintf(&out, "  %6d  %s\n", off, t)
		tokens++
	})
	dec := wxf.NewDecoder(bytes.NewReader(data), hook, wxf.WithMaxDepth(*maxDepth), wxf.WithLogger(a.log))

	for n = 1; ; n++ {
		started = false
		_, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			a.stdout.Write(out.Bytes())
			return fmt.Errorf("message %d: %w", n, err)
		}
	}
	fmt.Fprintf(&out, "--- %d messages, %d tokens ---\n", n-1, tokens)
	_, err = a.stdout.Write(out.Bytes())
	return err
}
