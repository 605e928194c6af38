package format

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<zome:document xmlns:zome="http://xml.zomeedit.dev/format/5.0/" edition="zomeedit" version="1.2" coreVersion="1.2.0" field="golden">
  <EditHistory editNumber="2" lastStickyEdit="-1">
    <ShowPoint point="0,0,0"/>
    <FutureCommand zeta="1" alpha="2" note="a &amp; b"/>
  </EditHistory>
  <notes>
    <page title="One" snapshot="0"><content>line one
line two</content></page>
  </notes>
</zome:document>`

func TestXMLDecode(t *testing.T) {
	root, err := (&XMLCodec{}).Decode(strings.NewReader(sampleXML))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if root.Name != "zome:document" || root.LocalName() != "document" {
		t.Errorf("root name = %q", root.Name)
	}
	hist := root.Child("EditHistory")
	if hist == nil {
		t.Fatal("EditHistory missing")
	}
	if len(hist.Children) != 2 {
		t.Fatalf("got %d edits, want 2", len(hist.Children))
	}
	future := hist.Children[1]
	wantAttrs := []Attr{{"zeta", "1"}, {"alpha", "2"}, {"note", "a & b"}}
	if len(future.Attrs) != len(wantAttrs) {
		t.Fatalf("got %v, want %v", future.Attrs, wantAttrs)
	}
	for i := range wantAttrs {
		if future.Attrs[i] != wantAttrs[i] {
			t.Errorf("attr %d = %v, want %v", i, future.Attrs[i], wantAttrs[i])
		}
	}
	content := root.Find("content")
	if content == nil || content.Text != "line one\nline two" {
		t.Errorf("content text = %q", content.Text)
	}
	if hist.Text != "" {
		t.Errorf("whitespace between elements kept as text: %q", hist.Text)
	}
}

func TestXMLRoundTrip(t *testing.T) {
	for _, indent := range []bool{false, true} {
		c := &XMLCodec{Indent: indent}
		root, err := c.Decode(strings.NewReader(sampleXML))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		var buf bytes.Buffer
		if err := c.Encode(&buf, root); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		again, err := c.Decode(&buf)
		if err != nil {
			t.Fatalf("re-Decode failed: %v", err)
		}
		if !root.Equal(again) {
			t.Errorf("indent=%v: tree changed across round trip", indent)
		}
	}
}

func TestXMLUnknownElementIsByteStable(t *testing.T) {
	el := NewElement("FutureCommand").SetAttr("zeta", "1").SetAttr("alpha", "<2>")
	var buf bytes.Buffer
	if err := (&XMLCodec{}).Encode(&buf, el); err != nil {
		t.Fatal(err)
	}
	want := `<FutureCommand zeta="1" alpha="&lt;2&gt;"/>`
	if got := strings.TrimPrefix(buf.String(), "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestXMLMixedContentIsFlattened(t *testing.T) {
	c := &XMLCodec{}
	root, err := c.Decode(strings.NewReader(`<a>x<b/>y<!-- note --><![CDATA[<z>]]></a>`))
	if err != nil {
		t.Fatal(err)
	}
	if root.Text != "xy<z>" || len(root.Children) != 1 {
		t.Fatalf("Text = %q, %d children", root.Text, len(root.Children))
	}
	var buf bytes.Buffer
	if err := c.Encode(&buf, root); err != nil {
		t.Fatal(err)
	}
	want := `<a>xy&lt;z&gt;<b/></a>`
	if got := strings.TrimPrefix(buf.String(), xml.Header); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestXMLMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrEmptyDocument},
		{"unclosed", "<a><b></a>", ErrMalformed},
		{"garbage", "<<<", ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&XMLCodec{}).Decode(strings.NewReader(tt.in))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	root, err := (&XMLCodec{}).Decode(strings.NewReader(sampleXML))
	if err != nil {
		t.Fatal(err)
	}
	for _, indent := range []bool{false, true} {
		c := &JSONCodec{Indent: indent}
		var buf bytes.Buffer
		if err := c.Encode(&buf, root); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		again, err := c.Decode(&buf)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if !root.Equal(again) {
			t.Errorf("indent=%v: tree changed across JSON round trip", indent)
		}
	}
}

func TestJSONMalformed(t *testing.T) {
	for _, in := range []string{`{"name":`, `[1,2]`, `{"attrs":[]}`, `{"name":"a","attrs":[["x"]]}`} {
		if _, err := (&JSONCodec{}).Decode(strings.NewReader(in)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%q) = %v, want ErrMalformed", in, err)
		}
	}
}

func TestSniff(t *testing.T) {
	if Sniff([]byte("  {\"name\":\"a\"}")).Name() != "json" {
		t.Error("expected json codec")
	}
	if Sniff([]byte("<?xml?><a/>")).Name() != "xml" {
		t.Error("expected xml codec")
	}
}

func TestCodecFor(t *testing.T) {
	if _, err := CodecFor("yaml", false); !errors.Is(err, ErrUnknownCodec) {
		t.Errorf("got %v, want ErrUnknownCodec", err)
	}
	c, err := CodecFor("json", true)
	if err != nil || c.Name() != "json" {
		t.Errorf("CodecFor(json) = %v, %v", c, err)
	}
}

func TestFileIsTooNew(t *testing.T) {
	tests := []struct {
		file, core string
		want       bool
	}{
		{"9.1.0", "9.0.5", true},
		{"8.9.9", "9.0.0", false},
		{"9.0.5", "9.0.5", false},
		{"9.0.5.1", "9.0.5", true},
		{"9.0", "9.0.1", false},
		{"10.0.0", "9.9.9", true},
		{"", "9.0.0", false},
		{"9.x.0", "9.0.0", false},
	}
	for _, tt := range tests {
		if got := FileIsTooNew(tt.file, tt.core); got != tt.want {
			t.Errorf("FileIsTooNew(%q, %q) = %v, want %v", tt.file, tt.core, got, tt.want)
		}
	}
}

func TestHeader(t *testing.T) {
	h := Header{Edition: "zomeedit", Version: "1.2", BuildNumber: "7", CoreVersion: "1.2.0", Field: "golden"}
	root := h.NewRoot()
	got, err := ReadHeader(root)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	h.Namespace = CurrentNamespace
	if got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}
	if got.IsMigration() {
		t.Error("current format reported as migration")
	}
	if got.ToolVersion() != "zomeedit 1.2 build 7" {
		t.Errorf("ToolVersion = %q", got.ToolVersion())
	}

	legacy := NewElement("doc").SetAttr("xmlns", "http://xml.zomeedit.dev/format/3.0/")
	lh, err := ReadHeader(legacy)
	if err != nil {
		t.Fatal(err)
	}
	if Classify(lh, "1.0.0") != Migration {
		t.Errorf("Classify = %v, want migration", Classify(lh, "1.0.0"))
	}

	unknown := NewElement("doc").SetAttr("xmlns", "urn:other")
	if _, err := ReadHeader(unknown); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("got %v, want ErrUnknownFormat", err)
	}

	newer := Header{Namespace: CurrentNamespace, CoreVersion: "3.0.0"}
	if Classify(newer, "2.5.0") != TooNew {
		t.Error("expected too-new")
	}
}

func TestElementAttrs(t *testing.T) {
	el := NewElement("E").SetInt("n", 4).SetBool("b", true).SetAttr("s", "x")
	el.SetInt("n", 5)
	if el.Attrs[0].Name != "n" || el.Attrs[0].Value != "5" {
		t.Errorf("SetInt did not replace in place: %v", el.Attrs)
	}
	if n, err := el.Int("n", 0); err != nil || n != 5 {
		t.Errorf("Int = %d, %v", n, err)
	}
	if n, err := el.Int("missing", -1); err != nil || n != -1 {
		t.Errorf("Int default = %d, %v", n, err)
	}
	if _, err := el.Int("s", 0); err == nil {
		t.Error("expected parse error")
	}
	if b, _ := el.Bool("b", false); !b {
		t.Error("Bool = false")
	}
	el.RemoveAttr("b")
	if _, ok := el.Lookup("b"); ok {
		t.Error("RemoveAttr left attribute")
	}
	clone := el.Clone()
	clone.SetAttr("s", "y")
	if el.Attr("s") != "x" {
		t.Error("clone shares attributes")
	}
}
