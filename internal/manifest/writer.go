package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"infrascan/internal/logging"
)

// Format is a manifest serialization format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown manifest format %q (valid: json, yaml)", s)
	}
}

// Marshal serializes m as a pretty-printed document ending in a newline.
func Marshal(m *Manifest, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return nil, fmt.Errorf("failed to marshal manifest: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to marshal manifest: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal manifest: %w", err)
		}
		return append(data, '\n'), nil
	}
}

// Filename returns the conventional file name for a manifest:
// requirements-<profile>.json on VMs, requirements-k8s-<profile>.json on
// Kubernetes.
func Filename(platform Platform, profile string, format Format) string {
	ext := "json"
	if format == FormatYAML {
		ext = "yaml"
	}
	if platform == PlatformKubernetes {
		return fmt.Sprintf("requirements-k8s-%s.%s", profile, ext)
	}
	return fmt.Sprintf("requirements-%s.%s", profile, ext)
}

// Writer writes manifests into a directory.
type Writer struct {
	Dir    string
	Format Format
}

// Write serializes m into the writer's directory and returns the file path.
func (w Writer) Write(m *Manifest) (string, error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := Marshal(m, w.Format)
	if err != nil {
		return "", err
	}

	path := filepath.Join(w.Dir, Filename(m.Platform, m.Environment, w.Format))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	logging.ManifestDebug("wrote %s (%d bytes)", path, len(data))
	return path, nil
}
