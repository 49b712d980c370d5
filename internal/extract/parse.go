package extract

import (
	"strings"

	"infrascan/internal/manifest"
	"infrascan/internal/pattern"
	"infrascan/internal/placeholder"
	"infrascan/internal/tree"
)

// named is the common shape of a declaration entry.
type named struct {
	name        string
	critical    bool
	description string
}

// parseIdentified reads the identifying field of a declaration entry,
// resolving placeholders against the whole tree. Entries whose identity is
// missing or still contains an unresolved placeholder are dropped with a
// warning.
func (e *Extractor) parseIdentified(entry *tree.Map, section, field string) (named, bool) {
	raw, ok := stringField(entry, field)
	if !ok || raw == "" {
		e.log.Warnf("%s: declaration without %q dropped", section, field)
		return named{}, false
	}
	id := placeholder.Resolve(raw, e.root)
	if placeholder.HasUnresolved(id) {
		e.log.Warnf("%s: %q has unresolved placeholders; declaration dropped", section, raw)
		return named{}, false
	}

	n := named{name: id, critical: true, description: id}
	if v, ok := entry.Get("critical"); ok {
		if b, ok := parseCritical(v); ok {
			n.critical = b
		} else {
			e.log.Warnf("%s: %s has unrecognized critical value %q; treating as critical", section, id, v.String())
		}
	}
	if d, ok := stringField(entry, "description"); ok {
		n.description = d
	}
	return n, true
}

// yaml11Bools holds the YAML 1.1 boolean words that Spring accepts but
// yaml.v3 reads as plain strings.
var yaml11Bools = map[string]bool{
	"y": true, "yes": true, "on": true, "true": true,
	"n": false, "no": false, "off": false, "false": false,
}

// parseCritical reads a critical flag. Null counts as unset.
func parseCritical(v tree.Value) (bool, bool) {
	s, ok := v.(*tree.Scalar)
	if !ok {
		return false, false
	}
	if s.IsNull() {
		return true, true
	}
	if b, ok := s.AsBool(); ok {
		return b, true
	}
	text, ok := s.Text()
	if !ok {
		return false, false
	}
	b, ok := yaml11Bools[strings.ToLower(strings.TrimSpace(text))]
	return b, ok
}

func (e *Extractor) parseNamed(entry *tree.Map, section string) (named, bool) {
	return e.parseIdentified(entry, section, "name")
}

func (e *Extractor) parseFile(entry *tree.Map) (manifest.FileCheck, bool) {
	n, ok := e.parseIdentified(entry, "files", "path")
	if !ok {
		return manifest.FileCheck{}, false
	}
	return manifest.FileCheck{
		Path:        n.name,
		Location:    pattern.ClassifyLocation(n.name),
		Critical:    n.critical,
		Description: n.description,
	}, true
}

func (e *Extractor) parseAPI(entry *tree.Map) (manifest.ApiCheck, bool) {
	n, ok := e.parseIdentified(entry, "apis", "url")
	if !ok {
		return manifest.ApiCheck{}, false
	}
	method := manifest.DefaultMethod
	if m, ok := stringField(entry, "method"); ok && m != "" {
		method = m
	}
	return manifest.NewApiCheck(n.name, method, n.critical, n.description), true
}

func (e *Extractor) parsePvc(entry *tree.Map) (manifest.PvcCheck, bool) {
	n, ok := e.parseNamed(entry, "pvcs")
	if !ok {
		return manifest.PvcCheck{}, false
	}
	pvc := manifest.PvcCheck{Name: n.name, Critical: n.critical, Description: n.description}
	if mp, ok := stringField(entry, "mountPath"); ok {
		pvc.MountPath = placeholder.Resolve(mp, e.root)
	}
	return pvc, true
}

// stringField returns a non-null scalar field rendered as text. Numbers and
// booleans are accepted so that `name: 42` still identifies an entry.
func stringField(m *tree.Map, field string) (string, bool) {
	v, ok := m.Get(field)
	if !ok {
		return "", false
	}
	s, ok := v.(*tree.Scalar)
	if !ok || s.IsNull() {
		return "", false
	}
	return s.String(), true
}
