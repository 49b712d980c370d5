// Package loader turns a multi-document YAML configuration source into a
// single profile-resolved tree.
//
// Documents without a profile marker form the base; documents whose marker
// equals the requested profile are merged on top of it. Documents for other
// profiles are ignored entirely.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"infrascan/internal/logging"
	"infrascan/internal/tree"
)

const (
	// ActivationProfileKey is the Spring Boot 2.4+ profile marker.
	ActivationProfileKey = "spring.config.activate.on-profile"
	// LegacyProfileKey is the pre-2.4 single-profile marker.
	LegacyProfileKey = "spring.profiles"
)

// Document is one parsed document of a configuration source.
type Document struct {
	Index      int    // position in the source, counting skipped documents
	Profile    string // profile marker, empty for base documents
	HasProfile bool
	Tree       *tree.Map
}

// Split cuts text into raw documents at "---" document-start lines. Each
// returned chunk keeps its own marker line so it parses standalone.
func Split(text string) []string {
	var (
		docs    []string
		current strings.Builder
		started bool
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if isDocumentStart(line) && started {
			docs = append(docs, current.String())
			current.Reset()
		}
		started = true
		current.WriteString(line)
		current.WriteByte('\n')
	}
	if started {
		docs = append(docs, current.String())
	}
	return docs
}

func isDocumentStart(line string) bool {
	if !strings.HasPrefix(line, "---") {
		return false
	}
	rest := line[3:]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

// Parse parses every document in text. Malformed documents and documents
// that are not mappings are logged and skipped.
func Parse(text string) []Document {
	var docs []Document
	for i, chunk := range Split(text) {
		doc, ok := parseDocument(i, chunk)
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

func parseDocument(index int, chunk string) (Document, bool) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(chunk), &node); err != nil {
		logging.Get(logging.CategoryLoader).Warnf("skipping malformed document %d: %v", index, err)
		return Document{}, false
	}
	if node.Kind == 0 || (node.Kind == yaml.DocumentNode && len(node.Content) == 0) {
		return Document{}, false
	}

	v, err := tree.FromYAML(&node)
	if err != nil {
		logging.Get(logging.CategoryLoader).Warnf("skipping malformed document %d: %v", index, err)
		return Document{}, false
	}
	m, ok := v.(*tree.Map)
	if !ok {
		logging.LoaderDebug("skipping document %d: top level is a %s, not a map", index, v.Kind())
		return Document{}, false
	}

	profile, hasProfile := ProfileOf(m)
	return Document{Index: index, Profile: profile, HasProfile: hasProfile, Tree: m}, true
}

// ProfileOf returns the profile marker of a document. The activation key wins
// over the legacy key; the legacy key only counts when it is a string.
func ProfileOf(doc *tree.Map) (string, bool) {
	if v, outcome := tree.Lookup(doc, ActivationProfileKey); outcome == tree.Found {
		return v.String(), true
	}
	if p, ok := tree.LookupString(doc, LegacyProfileKey); ok {
		return p, true
	}
	return "", false
}

// Load returns the merged tree for profile. An empty profile selects the base
// documents only.
func Load(text, profile string) *tree.Map {
	return Merge(Parse(text), profile)
}

// Merge folds already-parsed documents for profile: base documents in order,
// then matching profile documents in order on top.
func Merge(docs []Document, profile string) *tree.Map {
	var base, overlay []tree.Value
	for _, d := range docs {
		switch {
		case !d.HasProfile:
			base = append(base, d.Tree)
		case profile != "" && d.Profile == profile:
			overlay = append(overlay, d.Tree)
		}
	}

	merged := tree.Merge(tree.MergeAll(base...), tree.MergeAll(overlay...))
	if m, ok := merged.(*tree.Map); ok {
		return m
	}
	return tree.Empty()
}

// ReadSource reads a configuration file. A missing file is not an error; it
// is reported through found=false.
func ReadSource(path string) (text string, found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read config source: %w", err)
	}
	return string(data), true, nil
}

// LoadFile reads path and returns the merged tree for profile. Missing or
// unreadable files yield an empty tree.
func LoadFile(path, profile string) *tree.Map {
	text, found, err := ReadSource(path)
	if err != nil {
		logging.Get(logging.CategoryLoader).Warnf("%v", err)
		return tree.Empty()
	}
	if !found {
		logging.Get(logging.CategoryLoader).Warnf("config source not found: %s", path)
		return tree.Empty()
	}
	return Load(text, profile)
}
