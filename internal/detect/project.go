package detect

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"infrascan/internal/logging"
)

// buildFileGlob matches the build descriptors read by ScanProject.
const buildFileGlob = "{build.gradle,build.gradle.kts,pom.xml}"

var (
	// id 'x', id "x", id("x")
	gradlePluginID = regexp.MustCompile(`\bid\s*\(?\s*['"]([A-Za-z0-9_.\-]+)['"]`)
	// apply plugin: 'x'
	gradleApplyPlugin = regexp.MustCompile(`apply\s+plugin\s*:\s*['"]([A-Za-z0-9_.\-]+)['"]`)
)

// mavenArtifacts maps Maven plugin artifacts to their Gradle plugin ids.
var mavenArtifacts = map[string]string{
	"jib-maven-plugin":        "com.google.cloud.tools.jib",
	"spring-boot-thin-layout": "org.springframework.boot.experimental.thin-launcher",
}

// OSProbe is an FSProbe backed by the real filesystem.
type OSProbe struct {
	Root string
}

// DirExists reports whether rel is a directory under the probe root.
func (p OSProbe) DirExists(rel string) bool {
	info, err := os.Stat(filepath.Join(p.Root, rel))
	return err == nil && info.IsDir()
}

// ScanProject collects build plugin ids from the Gradle or Maven descriptors
// at the root of dir. Unreadable files are skipped.
func ScanProject(dir string) Signals {
	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, buildFileGlob)
	if err != nil {
		logging.Get(logging.CategoryDetect).Warnf("build file glob failed: %v", err)
		return Signals{}
	}

	seen := make(map[string]bool)
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			logging.DetectDebug("skipping %s: %v", name, err)
			continue
		}
		for _, id := range pluginIDs(name, string(data)) {
			seen[id] = true
		}
	}

	plugins := make([]string, 0, len(seen))
	for id := range seen {
		plugins = append(plugins, id)
	}
	sort.Strings(plugins)
	logging.DetectDebug("build plugins in %s: %v", dir, plugins)
	return Signals{Plugins: plugins}
}

func pluginIDs(name, content string) []string {
	var ids []string
	if strings.HasSuffix(name, "pom.xml") {
		for artifact, id := range mavenArtifacts {
			if strings.Contains(content, "<artifactId>"+artifact+"</artifactId>") {
				ids = append(ids, id)
			}
		}
		return ids
	}

	for _, re := range []*regexp.Regexp{gradlePluginID, gradleApplyPlugin} {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			ids = append(ids, m[1])
		}
	}
	return ids
}
