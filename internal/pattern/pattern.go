// Package pattern classifies configuration values as filesystem paths or URLs
// and applies exclusion rules. Every function is total: empty input is simply
// "not a match".
package pattern

import (
	"regexp"
	"strings"
)

// Location is the storage category of a filesystem path.
type Location string

const (
	LocationNAS     Location = "nas"     // networked storage mount
	LocationMount   Location = "mount"   // generic mount point
	LocationLocal   Location = "local"   // home or opt
	LocationVar     Location = "var"     // variable data
	LocationUnknown Location = "unknown"
)

var (
	// Certificate and key material anywhere on an absolute path.
	certFilePattern = regexp.MustCompile(`^/[a-zA-Z0-9/_.-]+\.(der|pem|p8|p12|cer|crt|key|jks|keystore|pfx|truststore)$`)

	// Paths under a known mount root.
	mountPathPattern = regexp.MustCompile(`^/(nas[0-9]*|mnt|home|var|opt)/[a-zA-Z0-9/_.-]+$`)

	urlPattern = regexp.MustCompile(`^https?://[a-zA-Z0-9.-]+(:[0-9]+)?(/.*)?$`)
)

// DefaultExcludes are substrings that always exclude a value from
// auto-extraction.
var DefaultExcludes = []string{
	"localhost",
	"127.0.0.1",
	"0.0.0.0",
	"host.docker.internal",
}

// locationRules is ordered most specific first.
var locationRules = []struct {
	prefix   string
	location Location
}{
	{"/nas", LocationNAS},
	{"/mnt/nas", LocationNAS},
	{"/mnt", LocationMount},
	{"/home", LocationLocal},
	{"/opt", LocationLocal},
	{"/var", LocationVar},
}

// IsFilesystemPath reports whether v looks like a file the deployment target
// must provide: a certificate/key file or a path under a mount root.
func IsFilesystemPath(v string) bool {
	if v == "" {
		return false
	}
	return certFilePattern.MatchString(v) || mountPathPattern.MatchString(v)
}

// ClassifyLocation returns the storage category of path.
func ClassifyLocation(path string) Location {
	for _, rule := range locationRules {
		if strings.HasPrefix(path, rule.prefix) {
			return rule.location
		}
	}
	return LocationUnknown
}

// IsURL reports whether v is an http(s) URL with a host.
func IsURL(v string) bool {
	if v == "" {
		return false
	}
	return urlPattern.MatchString(v)
}

// ShouldExclude reports whether v must be left out of auto-extraction.
func ShouldExclude(v string, userPatterns []string) bool {
	return NewExcluder(userPatterns).Excluded(v)
}

// Excluder holds user exclusion patterns compiled once.
type Excluder struct {
	patterns []*regexp.Regexp
}

// NewExcluder compiles wildcard patterns. '.' matches a literal dot and '*'
// matches anything; a pattern may match anywhere in the value. Patterns that
// fail to compile are ignored.
func NewExcluder(userPatterns []string) *Excluder {
	e := &Excluder{}
	for _, p := range userPatterns {
		if p == "" {
			continue
		}
		expr := strings.ReplaceAll(p, ".", `\.`)
		expr = strings.ReplaceAll(expr, "*", ".*")
		re, err := regexp.Compile(expr)
		if err != nil {
			continue
		}
		e.patterns = append(e.patterns, re)
	}
	return e
}

// Excluded reports whether v contains a default excluded host or matches a
// user pattern.
func (e *Excluder) Excluded(v string) bool {
	for _, ex := range DefaultExcludes {
		if strings.Contains(v, ex) {
			return true
		}
	}
	if e == nil {
		return false
	}
	for _, re := range e.patterns {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}
