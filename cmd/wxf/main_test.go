package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Neumenon/wxf/wxf"
)

func testApp(stdin string) (*app, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	cfg := config{MaxDepth: 1024, LogLevel: "warn", Color: "never"}
	return newApp(cfg, strings.NewReader(stdin), &stdout, &stderr), &stdout, &stderr
}

func encodeInput(t *testing.T, from, in string, extra ...string) []byte {
	t.Helper()
	a, out, _ := testApp(in)
	args := append([]string{"encode", "--from", from}, extra...)
	if err := a.run(args); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return out.Bytes()
}

func TestRun_Version(t *testing.T) {
	a, out, _ := testApp("")
	if err := a.run([]string{"version"}); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "wxf "+version+"\n" {
		t.Errorf("version output = %q", got)
	}
}

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"frobnicate"}} {
		a, _, stderr := testApp("")
		if err := a.run(args); !errors.Is(err, errUsage) {
			t.Errorf("run(%q) = %v, want errUsage", args, err)
		}
		if !strings.Contains(stderr.String(), "Usage:") {
			t.Errorf("run(%q) printed no usage", args)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		from string
		in   string
		to   string
		want string
	}{
		{"json to wl", "json", `{"b":1,"a":[2.5,true]}`, "wl", `<|"b" -> 1, "a" -> {2.5, True}|>` + "\n"},
		{"json to json", "json", `{"b":1,"a":[2.5,true,null]}`, "json", `{"b":1,"a":[2.5,true,null]}` + "\n"},
		{"yaml to wl", "yaml", "x: [1, two]\n", "wl", `<|"x" -> {1, "two"}|>` + "\n"},
		{"wl to wl", "wl", `f[x, "s", 3]`, "wl", `f[x, "s", 3]` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeInput(t, tt.from, tt.in)
			if !wxf.IsWXF(data) {
				t.Fatalf("encode output %q is not WXF", data)
			}

			a, out, _ := testApp(string(data))
			if err := a.run([]string{"decode", "--to", tt.to}); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got := out.String(); got != tt.want {
				t.Errorf("decode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncode_Compress(t *testing.T) {
	data := encodeInput(t, "json", `[1,2,3]`, "--compress")
	if !bytes.HasPrefix(data, []byte("8C:")) {
		t.Fatalf("header = %q, want 8C:", data[:min(len(data), 3)])
	}
}

func TestEncode_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wxf")
	a, out, _ := testApp(`"hi"`)
	if err := a.run([]string{"encode", "-o", path}); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("stdout should be empty, got %q", out.Bytes())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte("8:S\x02hi"); !bytes.Equal(data, want) {
		t.Errorf("file = %q, want %q", data, want)
	}
}

func TestEncode_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		in   string
	}{
		{"bad json", []string{"encode"}, `{"a":`},
		{"unknown format", []string{"encode", "--from", "toml"}, `a = 1`},
		{"too many files", []string{"encode", "a", "b"}, ``},
		{"unknown flag", []string{"encode", "--bogus"}, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, _ := testApp(tt.in)
			if err := a.run(tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecode_FilesInOrder(t *testing.T) {
	dir := t.TempDir()
	var args []string
	var want strings.Builder
	for i, src := range []string{`1`, `"two"`, `[3]`, `{"four":4}`} {
		path := filepath.Join(dir, "in"+string(rune('a'+i))+".wxf")
		if err := os.WriteFile(path, encodeInput(t, "json", src), 0o644); err != nil {
			t.Fatal(err)
		}
		args = append(args, path)
	}
	want.WriteString("1\n\"two\"\n{3}\n<|\"four\" -> 4|>\n")

	a, out, _ := testApp("")
	if err := a.run(append([]string{"decode"}, args...)); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != want.String() {
		t.Errorf("decode = %q, want %q", got, want.String())
	}
}

func TestDecode_Stream(t *testing.T) {
	var stream []byte
	stream = append(stream, encodeInput(t, "json", `1`)...)
	stream = append(stream, encodeInput(t, "json", `"x"`, "--compress")...)

	a, out, _ := testApp(string(stream))
	if err := a.run([]string{"decode"}); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "1\n\"x\"\n"; got != want {
		t.Errorf("decode = %q, want %q", got, want)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		in   string
	}{
		{"empty input", []string{"decode"}, ""},
		{"not wxf", []string{"decode"}, "hello"},
		{"truncated", []string{"decode"}, "8:S\x05ab"},
		{"unknown format", []string{"decode", "--to", "xml"}, "8:C\x01"},
		{"missing file", []string{"decode", filepath.Join(t.TempDir(), "nope.wxf")}, ""},
		{"stdin twice", []string{"decode", "-", "-"}, "8:C\x01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, _ := testApp(tt.in)
			if err := a.run(tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecode_Color(t *testing.T) {
	data := encodeInput(t, "wl", `f["s", 1]`)

	var stdout, stderr bytes.Buffer
	cfg := config{MaxDepth: 1024, LogLevel: "warn", Color: "always"}
	a := newApp(cfg, bytes.NewReader(data), &stdout, &stderr)
	if err := a.run([]string{"decode"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "\x1b[") {
		t.Errorf("expected ANSI escapes in %q", stdout.String())
	}
}

func TestDump(t *testing.T) {
	data := encodeInput(t, "wl", `f[1]`)

	a, out, _ := testApp(string(data))
	if err := a.run([]string{"dump"}); err != nil {
		t.Fatal(err)
	}
	want := "--- Message 1 ---\n" +
		"       2  Function\n" +
		"       4  Symbol\n" +
		"       7  Integer8\n" +
		"--- 1 messages, 3 tokens ---\n"
	if got := out.String(); got != want {
		t.Errorf("dump =\n%s\nwant\n%s", got, want)
	}
}

func TestParseLevel(t *testing.T) {
	if got := parseLevel("debug").String(); got != "DEBUG" {
		t.Errorf("parseLevel(debug) = %s", got)
	}
	if got := parseLevel("nonsense").String(); got != "WARN" {
		t.Errorf("parseLevel(nonsense) = %s", got)
	}
}
