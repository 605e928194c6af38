package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/zomeedit/internal/config"
	"github.com/dshills/zomeedit/internal/document"
	"github.com/dshills/zomeedit/internal/event"
	"github.com/dshills/zomeedit/internal/format"
	"github.com/dshills/zomeedit/internal/logging"
)

func newTestApp(t *testing.T) (*Application, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	a, err := New(Options{LogOutput: &logs})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Shutdown() })
	return a, &logs
}

func writeLegacyDocument(t *testing.T, dir string) string {
	t.Helper()
	root := format.NewElement(format.RootName).SetAttr("xmlns:zome", "http://xml.zomeedit.dev/format/4.0/")
	hist := format.NewElement("EditHistory").SetInt("editNumber", 1)
	hist.Append(format.NewElement("ShowPoint").SetAttr("point", "1,0,0"))
	root.Append(hist)

	var buf bytes.Buffer
	if err := (&format.XMLCodec{}).Encode(&buf, root); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "legacy.zome")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCreateEditSaveReopen(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	d, err := a.Create()
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "Untitled" || d.IsModified() {
		t.Errorf("new document: name %q, modified %v", d.Name, d.IsModified())
	}
	if _, err := d.Model.DoEdit(ctx, "ballAtOrigin"); err != nil {
		t.Fatal(err)
	}
	if !d.IsModified() {
		t.Error("edited document not modified")
	}
	if err := a.Save(d.Key()); !errors.Is(err, ErrNoPath) {
		t.Errorf("Save() without path = %v, want ErrNoPath", err)
	}

	path := filepath.Join(t.TempDir(), "ball.zome")
	if err := a.SaveAs(d.Key(), path); err != nil {
		t.Fatal(err)
	}
	if d.IsModified() || d.Name != "ball.zome" {
		t.Errorf("after save: name %q, modified %v", d.Name, d.IsModified())
	}
	if err := a.Close(d.Key(), false); err != nil {
		t.Fatal(err)
	}

	reopened, err := a.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Model.Model().Len() != 1 {
		t.Errorf("reopened model Len = %d", reopened.Model.Model().Len())
	}
	if reopened.Model.ID() != d.Model.ID() {
		t.Error("document id changed across save")
	}
	if _, err := a.Open(ctx, path); !errors.Is(err, ErrDocumentAlreadyOpen) {
		t.Errorf("second Open() = %v, want ErrDocumentAlreadyOpen", err)
	}

	snap := a.Metrics().Snapshot()
	if snap.Saved != 1 || snap.Opened != 2 || snap.Closed != 1 || snap.Open() != 1 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestCloseUnsaved(t *testing.T) {
	a, _ := newTestApp(t)
	d, _ := a.Create()
	if _, err := d.Model.DoEdit(context.Background(), "ballAtOrigin"); err != nil {
		t.Fatal(err)
	}
	err := a.Close(d.Key(), false)
	if !errors.Is(err, ErrUnsavedChanges) {
		t.Fatalf("Close() = %v, want ErrUnsavedChanges", err)
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Op != "close" {
		t.Errorf("error = %#v, want close OperationError", err)
	}
	if err := a.CloseAll(true); err != nil {
		t.Fatal(err)
	}
	if a.Documents().Count() != 0 {
		t.Errorf("Count() = %d after CloseAll", a.Documents().Count())
	}
	if err := a.Close("missing", true); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Close(missing) = %v", err)
	}
}

func TestOpenMigratedIsModified(t *testing.T) {
	a, logs := newTestApp(t)
	path := writeLegacyDocument(t, t.TempDir())

	d, err := a.Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Model.IsMigrated() || !d.IsModified() {
		t.Errorf("migrated %v, modified %v", d.Model.IsMigrated(), d.IsModified())
	}
	if !strings.Contains(logs.String(), "migrated") {
		t.Errorf("logs = %q", logs.String())
	}
	if err := a.Save(d.Key()); err != nil {
		t.Fatal(err)
	}
	if d.IsModified() {
		t.Error("saved document still modified")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), format.CurrentNamespace) {
		t.Errorf("saved file does not use the current format:\n%s", data)
	}
}

func TestOpenErrors(t *testing.T) {
	a, _ := newTestApp(t)
	dir := t.TempDir()

	if _, err := a.Open(context.Background(), filepath.Join(dir, "nope.zome")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open(missing) = %v", err)
	}

	bad := filepath.Join(dir, "bad.zome")
	if err := os.WriteFile(bad, []byte(`<zome:document xmlns:zome="`+format.CurrentNamespace+`"/>`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := a.Open(context.Background(), bad)
	var le *document.LoadError
	if !errors.As(err, &le) || !errors.Is(err, document.ErrNoHistory) {
		t.Errorf("Open(bad) = %v", err)
	}
}

func TestFailuresLoggedAndCounted(t *testing.T) {
	a, logs := newTestApp(t)
	d, _ := a.Create()
	res, err := d.Model.DoEdit(context.Background(), "joinballs")
	if err != nil || res.Failure == nil {
		t.Fatalf("DoEdit = %+v, %v", res, err)
	}
	if !strings.Contains(logs.String(), "[WARN]") || !strings.Contains(logs.String(), "select at least two balls") {
		t.Errorf("logs = %q", logs.String())
	}
	snap := a.Metrics().Snapshot()
	if snap.Failures != 1 || snap.Changes != 1 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestApplyConfigFromBus(t *testing.T) {
	a, _ := newTestApp(t)
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.History.RecordFailed = false
	if _, err := a.Bus().Publish(context.Background(), event.New(event.TopicConfigReloaded, cfg, "test")); err != nil {
		t.Fatal(err)
	}
	if a.Logger().Level() != logging.LevelError {
		t.Errorf("log level = %v, want error", a.Logger().Level())
	}

	d, _ := a.Create()
	if _, err := d.Model.DoEdit(context.Background(), "joinballs"); err != nil {
		t.Fatal(err)
	}
	if d.Model.History().Len() != 0 {
		t.Error("failed edit recorded after record_failed was turned off")
	}
}

func TestConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zomeedit.toml")
	if err := os.WriteFile(path, []byte("[save]\ncodec = \"json\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := New(Options{ConfigPath: path, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown()
	d, _ := a.Create()
	if d.Codec.Name() != "json" {
		t.Errorf("codec = %s, want json", d.Codec.Name())
	}

	if err := os.WriteFile(path, []byte("[save]\ncodec = \"zip\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Options{ConfigPath: path}); !errors.Is(err, config.ErrValidationFailed) {
		t.Errorf("New(invalid config) = %v", err)
	}
}

func TestShutdown(t *testing.T) {
	a, _ := newTestApp(t)
	if _, err := a.Create(); err != nil {
		t.Fatal(err)
	}
	if err := a.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Create(); !errors.Is(err, ErrClosed) {
		t.Errorf("Create() after Shutdown = %v", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
}

func TestDocumentManagerOrder(t *testing.T) {
	dm := NewDocumentManager()
	docs := make([]*Document, 3)
	for i := range docs {
		docs[i] = newDocument("", document.New(), &format.XMLCodec{})
		if err := dm.add(docs[i]); err != nil {
			t.Fatal(err)
		}
	}
	if docs[2].Name != "Untitled-3" || dm.Active() != docs[2] {
		t.Errorf("name %q, active %v", docs[2].Name, dm.Active() == docs[2])
	}
	if _, err := dm.remove(docs[2].Key()); err != nil {
		t.Fatal(err)
	}
	if dm.Active() != docs[1] {
		t.Error("active did not fall back to the last opened document")
	}
	if err := dm.SetActive(docs[0].Key()); err != nil {
		t.Fatal(err)
	}
	all := dm.All()
	if len(all) != 2 || all[0] != docs[0] || all[1] != docs[1] {
		t.Errorf("All() = %v", all)
	}
	if len(dm.DirtyDocuments()) != 0 {
		t.Error("new documents reported dirty")
	}
}

func TestOperationError(t *testing.T) {
	err := NewOperationError("save", "/tmp/a.zome", ErrNoPath).WithContext("retry")
	if got := err.Error(); got != "save /tmp/a.zome (retry): document has no path" {
		t.Errorf("Error() = %q", got)
	}
	var nilErr *OperationError
	if nilErr.WithContext("x") != nil || nilErr.Error() != "" || nilErr.Unwrap() != nil {
		t.Error("nil receiver not handled")
	}

	var list ErrorList
	if list.AsError() != nil {
		t.Error("empty list is an error")
	}
	list.Add(nil)
	list.Add(ErrClosed)
	list.Add(err)
	if list.Len() != 2 || !errors.Is(list.AsError(), ErrNoPath) {
		t.Errorf("list = %v", list.Errors())
	}
}
