// Package provision installs the validation script matching a deployment
// target into the project, once.
package provision

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"infrascan/internal/detect"
	"infrascan/internal/logging"
)

// DefaultDir is the project-relative directory scripts are copied into.
const DefaultDir = "bamboo-scripts"

const (
	VMScript         = "validate-infrastructure.sh"
	KubernetesScript = "validate-k8s-infrastructure.sh"
)

//go:embed scripts
var scripts embed.FS

// Result describes one provisioning attempt.
type Result struct {
	Script  string `json:"script"`
	Path    string `json:"path"`
	Skipped bool   `json:"skipped"`
}

// ScriptName returns the validation script for target.
func ScriptName(target detect.Target) string {
	if target == detect.TargetKubernetes {
		return KubernetesScript
	}
	return VMScript
}

// Script returns the embedded contents of a validation script.
func Script(name string) ([]byte, error) {
	data, err := scripts.ReadFile("scripts/" + name)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded script %s: %w", name, err)
	}
	return data, nil
}

// Provision copies the script for target into dir with mode 0755. An
// existing file is never overwritten; the result is then marked Skipped.
func Provision(target detect.Target, dir string) (Result, error) {
	name := ScriptName(target)
	res := Result{Script: name, Path: filepath.Join(dir, name)}

	if _, err := os.Stat(res.Path); err == nil {
		res.Skipped = true
		logging.ProvisionDebug("%s already exists, leaving it untouched", res.Path)
		return res, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return res, fmt.Errorf("failed to stat %s: %w", res.Path, err)
	}

	data, err := Script(name)
	if err != nil {
		return res, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return res, fmt.Errorf("failed to create script directory: %w", err)
	}

	if err := install(res.Path, bytes.NewReader(data)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			res.Skipped = true
			return res, nil
		}
		return res, err
	}

	logging.Provision("installed %s; commit it with: git add %s", res.Path, dir)
	return res, nil
}

// install creates path exclusively and fills it from r. A partially written
// file is removed so the next run installs it again instead of skipping it.
func install(path string, r io.Reader) (err error) {
	// O_EXCL keeps a concurrent provisioner from clobbering a file created
	// after the caller's Stat.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0755)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			os.Remove(path)
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	// The umask may have stripped execute bits.
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	return nil
}
