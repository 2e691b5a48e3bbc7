// bench - WXF size benchmark runner
//
// Compares the wire size of a corpus of JSON documents across encodings:
//   - JSON (minified)
//   - WXF and zlib-compressed WXF
//   - CBOR and MessagePack, via the same native values
//
// Every case is round-tripped through WXF before it is counted.
//
// Usage:
//
//	bench [--csv file] [--md file] [file.json | dir]...
//
// Output: summary on stdout, optional CSV and markdown reports.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Neumenon/wxf/bridge"
	"github.com/Neumenon/wxf/expr"
	"github.com/Neumenon/wxf/wxf"
)

// Encodings measured for every case, in report order.
var encodings = []string{"json", "wxf", "wxf+zlib", "cbor", "msgpack"}

type CaseResult struct {
	Name  string
	Bytes map[string]int
}

// Saved returns how many bytes the encoding saves over minified JSON, and
// the saving as a percentage.
func (r CaseResult) Saved(enc string) (int, float64) {
	base := r.Bytes["json"]
	saved := base - r.Bytes[enc]
	if base == 0 {
		return saved, 0
	}
	return saved, float64(saved) / float64(base) * 100
}

func main() {
	fs := pflag.NewFlagSet("bench", pflag.ExitOnError)
	csvPath := fs.String("csv", "", "write per-case results as CSV")
	mdPath := fs.String("md", "", "write a markdown report")
	fs.Parse(os.Args[1:])

	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{"testdata"}
	}
	files, err := collect(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bench: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "bench: no JSON files found")
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "WXF Benchmark Runner\n")
	fmt.Fprintf(os.Stderr, "====================\n")
	fmt.Fprintf(os.Stderr, "Corpus: %d files\n\n", len(files))

	var results []CaseResult
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skip %s: %v\n", path, err)
			continue
		}
		r, err := measure(filepath.Base(path), data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skip %s: %v\n", path, err)
			continue
		}
		results = append(results, r)
	}

	if *csvPath != "" {
		if err := writeFile(*csvPath, func(w io.Writer) { writeCSV(w, results) }); err != nil {
			fmt.Fprintf(os.Stderr, "bench: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "CSV written to: %s\n", *csvPath)
		}
	}
	if *mdPath != "" {
		if err := writeFile(*mdPath, func(w io.Writer) { writeMarkdown(w, results) }); err != nil {
			fmt.Fprintf(os.Stderr, "bench: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Markdown written to: %s\n", *mdPath)
		}
	}

	writeSummary(os.Stdout, results)
}

// collect expands directories into the .json files they contain.
func collect(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.json"))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// measure encodes one JSON document every way and checks that WXF
// round-trips it.
func measure(name string, data []byte) (CaseResult, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return CaseResult{}, fmt.Errorf("JSON: %w", err)
	}

	e, err := bridge.FromJSON(data)
	if err != nil {
		return CaseResult{}, err
	}
	plain, err := wxf.Marshal(e)
	if err != nil {
		return CaseResult{}, err
	}
	compressed, err := wxf.Marshal(e, wxf.WithCompression(true))
	if err != nil {
		return CaseResult{}, err
	}

	for _, msg := range [][]byte{plain, compressed} {
		back, err := wxf.Unmarshal(msg)
		if err != nil {
			return CaseResult{}, fmt.Errorf("round trip: %w", err)
		}
		if !expr.Equal(e, back) {
			return CaseResult{}, fmt.Errorf("round trip changed the value")
		}
	}

	native, err := wxf.DecodeWith[any](plain, wxf.NativeConsumer{})
	if err != nil {
		return CaseResult{}, err
	}
	cborData, err := bridge.ToCBOR(native)
	if err != nil {
		return CaseResult{}, err
	}
	msgpackData, err := bridge.ToMsgpack(native)
	if err != nil {
		return CaseResult{}, err
	}

	return CaseResult{
		Name: name,
		Bytes: map[string]int{
			"json":     compact.Len(),
			"wxf":      len(plain),
			"wxf+zlib": len(compressed),
			"cbor":     len(cborData),
			"msgpack":  len(msgpackData),
		},
	}, nil
}

func totals(results []CaseResult) map[string]int {
	t := make(map[string]int, len(encodings))
	for _, r := range results {
		for _, enc := range encodings {
			t[enc] += r.Bytes[enc]
		}
	}
	return t
}

func writeFile(path string, write func(io.Writer)) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	write(f)
	return f.Close()
}

func writeSummary(w io.Writer, results []CaseResult) {
	total := CaseResult{Name: "total", Bytes: totals(results)}
	fmt.Fprintf(w, "\n=== SUMMARY ===\n")
	fmt.Fprintf(w, "Cases:        %d\n", len(results))
	for _, enc := range encodings {
		if enc == "json" {
			fmt.Fprintf(w, "%-13s %d bytes\n", enc+":", total.Bytes[enc])
			continue
		}
		saved, pct := total.Saved(enc)
		fmt.Fprintf(w, "%-13s %d bytes, saved %d (%.1f%%)\n", enc+":", total.Bytes[enc], saved, pct)
	}
}

func writeCSV(w io.Writer, results []CaseResult) {
	fmt.Fprintf(w, "name,%s\n", strings.Join(encodings, ","))
	for _, r := range results {
		fmt.Fprint(w, r.Name)
		for _, enc := range encodings {
			fmt.Fprintf(w, ",%d", r.Bytes[enc])
		}
		fmt.Fprintln(w)
	}
}

func writeMarkdown(w io.Writer, results []CaseResult) {
	fmt.Fprintf(w, "# WXF Benchmark Results\n\n")
	fmt.Fprintf(w, "**Corpus:** %d cases\n\n", len(results))

	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| Encoding | Bytes | Saved vs JSON |\n")
	fmt.Fprintf(w, "|----------|-------|---------------|\n")
	total := CaseResult{Bytes: totals(results)}
	for _, enc := range encodings {
		saved, pct := total.Saved(enc)
		fmt.Fprintf(w, "| %s | %d | %d (%.1f%%) |\n", enc, total.Bytes[enc], saved, pct)
	}

	fmt.Fprintf(w, "\n### Cases Where JSON is Smaller than WXF\n\n")
	var worse []CaseResult
	for _, r := range results {
		if saved, _ := r.Saved("wxf"); saved < 0 {
			worse = append(worse, r)
		}
	}
	if len(worse) == 0 {
		fmt.Fprintf(w, "_None - WXF is smaller or equal in all cases._\n\n")
	} else {
		fmt.Fprintf(w, "| Case | JSON | WXF | Overhead |\n")
		fmt.Fprintf(w, "|------|------|-----|----------|\n")
		for _, r := range worse {
			saved, _ := r.Saved("wxf")
			fmt.Fprintf(w, "| %s | %d | %d | +%d bytes |\n", r.Name, r.Bytes["json"], r.Bytes["wxf"], -saved)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "## Methodology\n\n")
	fmt.Fprintf(w, "- **JSON:** `json.Compact` of the input\n")
	fmt.Fprintf(w, "- **WXF:** `wxf.Marshal` of the `bridge.FromJSON` expression, plain and zlib-compressed\n")
	fmt.Fprintf(w, "- **CBOR / MessagePack:** `bridge.ToCBOR` / `bridge.ToMsgpack` of the native decode\n\n")

	fmt.Fprintf(w, "## Detailed Results\n\n")
	fmt.Fprintf(w, "| Case | %s |\n", strings.Join(encodings, " | "))
	fmt.Fprintf(w, "|------%s|\n", strings.Repeat("|------", len(encodings)))
	for _, r := range results {
		fmt.Fprintf(w, "| %s", truncateName(r.Name, 25))
		for _, enc := range encodings {
			fmt.Fprintf(w, " | %d", r.Bytes[enc])
		}
		fmt.Fprintf(w, " |\n")
	}
}

func truncateName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
