package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/framelink/internal/origin"
	"github.com/danmuck/framelink/internal/testutil/testlog"
)

func TestRunGeneratesHashList(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "whitelist.yaml")
	output := filepath.Join(dir, "whitelist.toml")
	src := "origins:\n  - https://App.Example\n  - https://app.example:443\n  - http://localhost:3000\n"
	if err := os.WriteFile(input, []byte(src), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	if err := run(options{input: input, output: output}, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	text := string(data)
	if strings.Contains(text, "app.example") {
		t.Fatalf("plain origins must not be written: %s", text)
	}
	if !strings.Contains(text, origin.Hash("https://app.example")) || !strings.Contains(text, origin.Hash("http://localhost:3000")) {
		t.Fatalf("missing hashes in output: %s", text)
	}
	if strings.Count(text, origin.Hash("https://app.example")) != 1 {
		t.Fatalf("duplicate origins should collapse: %s", text)
	}

	var out bytes.Buffer
	if err := run(options{validate: "whitelist", input: output}, &out); err != nil {
		t.Fatalf("generated whitelist should validate: %v", err)
	}
	if !strings.Contains(out.String(), "validated whitelist") {
		t.Fatalf("unexpected output %q", out.String())
	}

	if err := run(options{input: input, output: output}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected refusal to overwrite without force")
	}
	if err := run(options{input: input, output: output, force: true}, &bytes.Buffer{}); err != nil {
		t.Fatalf("force overwrite: %v", err)
	}
}

func TestRunTemplatesValidate(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	for _, kind := range []string{"host", "embedded"} {
		path := filepath.Join(dir, kind+".toml")
		if err := run(options{template: kind, output: path}, &bytes.Buffer{}); err != nil {
			t.Fatalf("template %s: %v", kind, err)
		}
		if err := run(options{validate: kind, input: path}, &bytes.Buffer{}); err != nil {
			t.Fatalf("template %s should validate: %v", kind, err)
		}
	}
	source := filepath.Join(dir, "whitelist.yaml")
	if err := run(options{template: "whitelist", output: source}, &bytes.Buffer{}); err != nil {
		t.Fatalf("whitelist template: %v", err)
	}
	if err := run(options{validate: "source", input: source}, &bytes.Buffer{}); err != nil {
		t.Fatalf("whitelist source template should validate: %v", err)
	}
}

func TestRunRejectsUnknownKinds(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	if err := run(options{template: "proxy", output: filepath.Join(dir, "x")}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected unknown template kind error")
	}
	if err := run(options{validate: "proxy", input: filepath.Join(dir, "x")}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected unknown validate kind error")
	}
	if err := run(options{input: filepath.Join(dir, "missing.yaml"), output: filepath.Join(dir, "out.toml")}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected missing input error")
	}
}
