package format

import (
	"fmt"
	"strconv"
	"strings"
)

// Format namespaces. The current namespace is written on save; legacy
// namespaces are still readable but mark the load as a migration.
const (
	CurrentNamespace = "http://xml.zomeedit.dev/format/5.0/"
	RootName         = "zome:document"
	rootPrefix       = "zome"
)

var legacyNamespaces = map[string]string{
	"http://xml.zomeedit.dev/format/4.0/": "4.0",
	"http://xml.zomeedit.dev/format/3.0/": "3.0",
	"http://xml.zomeedit.dev/format/2.1/": "2.1",
}

// Header is the versioned envelope of a document.
type Header struct {
	Namespace   string
	Edition     string
	Version     string
	BuildNumber string
	CoreVersion string
	Field       string
	ID          string
}

// ReadHeader extracts the envelope from a root element.
func ReadHeader(root *Element) (Header, error) {
	if root == nil {
		return Header{}, ErrEmptyDocument
	}
	ns := namespaceOf(root)
	h := Header{
		Namespace:   ns,
		Edition:     root.Attr("edition"),
		Version:     root.Attr("version"),
		BuildNumber: root.Attr("buildNumber"),
		CoreVersion: root.Attr("coreVersion"),
		Field:       root.Attr("field"),
		ID:          root.Attr("id"),
	}
	if !IsKnownNamespace(ns) {
		return h, fmt.Errorf("%w: %q", ErrUnknownFormat, ns)
	}
	return h, nil
}

// NewRoot creates a root element carrying the header in the current format.
func (h Header) NewRoot() *Element {
	root := NewElement(RootName)
	root.SetAttr("xmlns:"+rootPrefix, CurrentNamespace)
	set := func(name, v string) {
		if v != "" {
			root.SetAttr(name, v)
		}
	}
	set("edition", h.Edition)
	set("version", h.Version)
	set("buildNumber", h.BuildNumber)
	set("coreVersion", h.CoreVersion)
	set("field", h.Field)
	set("id", h.ID)
	return root
}

// IsMigration reports whether the header names a legacy format.
func (h Header) IsMigration() bool {
	_, legacy := legacyNamespaces[h.Namespace]
	return legacy
}

// ToolVersion describes the program that wrote the file, for messages.
func (h Header) ToolVersion() string {
	parts := make([]string, 0, 4)
	if h.Edition != "" {
		parts = append(parts, h.Edition)
	}
	if h.Version != "" {
		parts = append(parts, h.Version)
	}
	if h.BuildNumber != "" {
		parts = append(parts, "build "+h.BuildNumber)
	}
	if len(parts) == 0 {
		return "an unknown version"
	}
	return strings.Join(parts, " ")
}

// IsKnownNamespace reports whether ns is the current or a legacy format.
func IsKnownNamespace(ns string) bool {
	if ns == CurrentNamespace {
		return true
	}
	_, ok := legacyNamespaces[ns]
	return ok
}

func namespaceOf(root *Element) string {
	if p := root.Prefix(); p != "" {
		return root.Attr("xmlns:" + p)
	}
	return root.Attr("xmlns")
}

// Compatibility classifies a file relative to the running core.
type Compatibility int

const (
	// Compatible files are in the current format and not newer than the core.
	Compatible Compatibility = iota
	// Migration files are in a legacy format and will be upgraded on load.
	Migration
	// TooNew files were written by a newer core.
	TooNew
)

// String returns the classification name.
func (c Compatibility) String() string {
	switch c {
	case Compatible:
		return "compatible"
	case Migration:
		return "migration"
	case TooNew:
		return "too-new"
	default:
		return "unknown"
	}
}

// Classify compares a header against the running core version.
func Classify(h Header, coreVersion string) Compatibility {
	if FileIsTooNew(h.CoreVersion, coreVersion) {
		return TooNew
	}
	if h.IsMigration() {
		return Migration
	}
	return Compatible
}

// FileIsTooNew compares dotted integer versions token by token. The first
// differing token decides; missing tokens count as zero. A non-numeric
// token on either side ends the comparison with false.
func FileIsTooNew(fileVersion, coreVersion string) bool {
	if fileVersion == "" || coreVersion == "" {
		return false
	}
	fv := strings.Split(fileVersion, ".")
	cv := strings.Split(coreVersion, ".")
	n := max(len(fv), len(cv))
	for i := 0; i < n; i++ {
		f, ok := versionToken(fv, i)
		if !ok {
			return false
		}
		c, ok := versionToken(cv, i)
		if !ok {
			return false
		}
		if f != c {
			return f > c
		}
	}
	return false
}

func versionToken(tokens []string, i int) (int, bool) {
	if i >= len(tokens) {
		return 0, true
	}
	n, err := strconv.Atoi(strings.TrimSpace(tokens[i]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ValidVersion reports whether v is a dotted sequence of integers.
func ValidVersion(v string) bool {
	if v == "" {
		return false
	}
	for _, tok := range strings.Split(v, ".") {
		if _, err := strconv.Atoi(tok); err != nil {
			return false
		}
	}
	return true
}
