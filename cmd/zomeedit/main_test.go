package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dshills/zomeedit/internal/format"
)

const legacyDocument = `<zome:document xmlns:zome="http://xml.zomeedit.dev/format/4.0/" edition="zomeedit" version="4.2">
  <EditHistory editNumber="3">
    <ShowPoint point="0,0,0"/>
    <ShowPoint point="1,0,0"/>
    <ShowPoint point="2,0,0"/>
  </EditHistory>
  <notes>
    <page title="Two" snapshot="-2"><content>The first two balls, placed one unit apart.</content></page>
  </notes>
</zome:document>
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	if code != 0 || !strings.HasPrefix(out, "zomeedit dev\n") {
		t.Errorf("version = %d, %q", code, out)
	}
	code, out, _ = runCLI(t, "-v")
	if code != 0 || !strings.Contains(out, "Commit: unknown") {
		t.Errorf("-v = %d, %q", code, out)
	}
}

func TestUsageErrors(t *testing.T) {
	if code, _, errOut := runCLI(t); code != 2 || !strings.Contains(errOut, "Commands:") {
		t.Errorf("no command = %d, %q", code, errOut)
	}
	if code, _, errOut := runCLI(t, "frobnicate"); code != 2 || !strings.Contains(errOut, `unknown command "frobnicate"`) {
		t.Errorf("unknown command = %d, %q", code, errOut)
	}
	if code, _, _ := runCLI(t, "-log-level", "loud", "version"); code != 2 {
		t.Errorf("bad log level = %d", code)
	}
}

func TestInspectJSON(t *testing.T) {
	path := writeFile(t, "legacy.zome", legacyDocument)
	code, out, errOut := runCLI(t, "-log-level", "error", "inspect", "-o", "json", "-history", path)
	if code != 0 {
		t.Fatalf("inspect = %d, stderr %q", code, errOut)
	}
	var r report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if r.Compatibility != "migration" || !r.Migrated {
		t.Errorf("compatibility %q, migrated %v", r.Compatibility, r.Migrated)
	}
	if r.Edits != 4 || r.EditNumber != 4 || r.Elements.Balls != 3 {
		t.Errorf("edits %d, editNumber %d, balls %d", r.Edits, r.EditNumber, r.Elements.Balls)
	}
	if len(r.Pages) != 1 || r.Pages[0].Snapshot != 0 || r.Pages[0].Summary == "" {
		t.Errorf("pages = %+v", r.Pages)
	}
	if len(r.History) != 4 || r.History[2].Name != "Snapshot" {
		t.Errorf("history = %+v", r.History)
	}
	if r.WrittenBy != "zomeedit 4.2" {
		t.Errorf("writtenBy = %q", r.WrittenBy)
	}
}

func TestInspectYAMLAndText(t *testing.T) {
	path := writeFile(t, "legacy.zome", legacyDocument)
	code, out, _ := runCLI(t, "-log-level", "error", "inspect", "-o", "yaml", path)
	if code != 0 {
		t.Fatalf("inspect yaml = %d", code)
	}
	var r report
	if err := yaml.Unmarshal([]byte(out), &r); err != nil {
		t.Fatal(err)
	}
	if r.Elements.Balls != 3 {
		t.Errorf("balls = %d", r.Elements.Balls)
	}

	code, out, _ = runCLI(t, "-log-level", "error", "inspect", "-undone", path)
	if code != 0 {
		t.Fatalf("inspect text = %d", code)
	}
	if !strings.Contains(out, "0 of 4 edits done") || !strings.Contains(out, "0 balls") {
		t.Errorf("text report = %q", out)
	}
}

func TestInspectLoadError(t *testing.T) {
	path := writeFile(t, "future.zome", `<zome:document xmlns:zome="`+format.CurrentNamespace+`" coreVersion="99.0"><EditHistory editNumber="x"/></zome:document>`)
	code, _, errOut := runCLI(t, "inspect", path)
	if code != 1 || !strings.Contains(errOut, "This file was authored with a newer version") {
		t.Errorf("inspect = %d, %q", code, errOut)
	}
}

func TestMigrate(t *testing.T) {
	path := writeFile(t, "legacy.zome", legacyDocument)
	out := filepath.Join(filepath.Dir(path), "current.json")
	code, stdout, errOut := runCLI(t, "-log-level", "error", "migrate", "-codec", "json", "-o", out, path)
	if code != 0 {
		t.Fatalf("migrate = %d, %q", code, errOut)
	}
	if !strings.Contains(stdout, "wrote "+out) {
		t.Errorf("stdout = %q", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	root, codec, err := format.DecodeBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	if codec.Name() != "json" || root.Attr("xmlns:zome") != format.CurrentNamespace {
		t.Errorf("codec %s, namespace %q", codec.Name(), root.Attr("xmlns:zome"))
	}

	code, stdout, _ = runCLI(t, "-log-level", "error", "migrate", out)
	if code != 0 || !strings.Contains(stdout, "already in the current format") {
		t.Errorf("second migrate = %d, %q", code, stdout)
	}
}

func TestRunScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "square.lua")
	if err := os.WriteFile(script, []byte(`
		zome.point(0, 0, 0)
		zome.point(1, 0, 0)
		zome.point(1, 1, 0)
		zome.point(0, 1, 0)
		zome.doEdit("selectAll")
		zome.doEdit("joinballs")
		print("elements", zome.count())
	`), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "square.zome")
	code, stdout, errOut := runCLI(t, "-log-level", "error", "run", "-o", out, script)
	if code != 0 {
		t.Fatalf("run = %d, %q", code, errOut)
	}
	if strings.TrimSpace(stdout) != "elements\t8" {
		t.Errorf("script output = %q", stdout)
	}
	if !strings.Contains(errOut, "4 balls, 4 struts") {
		t.Errorf("report = %q", errOut)
	}

	code, stdout, errOut = runCLI(t, "-log-level", "error", "inspect", out)
	if code != 0 || !strings.Contains(stdout, "4 balls, 4 struts") {
		t.Fatalf("inspect saved = %d, %q, %q", code, stdout, errOut)
	}

	bad := filepath.Join(dir, "bad.lua")
	if err := os.WriteFile(bad, []byte(`zome.doEdit("explode")`), 0o644); err != nil {
		t.Fatal(err)
	}
	if code, _, errOut := runCLI(t, "run", bad); code != 1 || !strings.Contains(errOut, "unknown action") {
		t.Errorf("bad script = %d, %q", code, errOut)
	}
}

func TestConfigCommand(t *testing.T) {
	cfg := writeFile(t, "zomeedit.toml", "[save]\ncodec = \"json\"\n")
	code, out, errOut := runCLI(t, "-c", cfg, "config")
	if code != 0 {
		t.Fatalf("config = %d, %q", code, errOut)
	}
	if !strings.Contains(out, "codec = 'json'") && !strings.Contains(out, `codec = "json"`) {
		t.Errorf("config output = %q", out)
	}
}
