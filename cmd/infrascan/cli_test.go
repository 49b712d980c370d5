package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infrascan/internal/logging"
)

const appYAML = `
db:
  host: db.internal
app:
  cert: /opt/certs/app.pem
  url: https://api.company.com/v1
---
spring:
  config:
    activate:
      on-profile: prod
db:
  host: db.prod
`

// execute runs the root command with args against a fresh flag state.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(t *testing.T) {
	t.Helper()
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			require.NoError(t, f.Value.Set(f.DefValue))
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}
	t.Cleanup(func() { logging.SetLogger(nil) })
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "main", "resources")
	require.NoError(t, os.MkdirAll(src, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "application.yml"), []byte(appYAML), 0644))
	return dir
}

func TestAnalyze_DefaultsToVM(t *testing.T) {
	dir := newProject(t)

	out, err := execute(t, "--project-dir", dir, "--project-name", "svc")
	require.NoError(t, err)

	assert.Contains(t, out, "Platform: vm (default)")
	assert.Contains(t, out, "requirements-prod.json")
	assert.Contains(t, out, "Validation script: created")
	assert.FileExists(t, filepath.Join(dir, "build", "infrastructure", "requirements-dev.json"))
	assert.FileExists(t, filepath.Join(dir, "bamboo-scripts", "validate-infrastructure.sh"))

	data, err := os.ReadFile(filepath.Join(dir, "build", "infrastructure", "requirements-stg.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"project": "svc"`)
}

func TestAnalyze_FlagsOverrideSettings(t *testing.T) {
	dir := newProject(t)
	settings := "project_name: from-settings\nanalysis:\n  profiles: [dev]\n  format: yaml\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".infrascan.yaml"), []byte(settings), 0644))

	_, err := execute(t, "analyze", "-d", dir, "--platform", "kubernetes", "--no-scripts", "--profiles", "qa,prod")
	require.NoError(t, err)

	out := filepath.Join(dir, "build", "infrastructure")
	assert.FileExists(t, filepath.Join(out, "requirements-k8s-qa.yaml"))
	assert.FileExists(t, filepath.Join(out, "requirements-k8s-prod.yaml"))
	assert.NoFileExists(t, filepath.Join(out, "requirements-k8s-dev.yaml"))
	assert.NoDirExists(t, filepath.Join(dir, "bamboo-scripts"))

	data, err := os.ReadFile(filepath.Join(out, "requirements-k8s-qa.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "project: from-settings")
	assert.Contains(t, string(data), "namespace: default")
}

func TestAnalyze_RepeatedProfileWrittenOnce(t *testing.T) {
	dir := newProject(t)

	out, err := execute(t, "analyze", "-d", dir, "--no-scripts", "--profiles", "dev,dev")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "requirements-dev.json"))

	entries, err := os.ReadDir(filepath.Join(dir, "build", "infrastructure"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAnalyze_InvalidPlatform(t *testing.T) {
	_, err := execute(t, "analyze", "-d", newProject(t), "--platform", "mainframe")
	assert.Error(t, err)
}

func TestDetect(t *testing.T) {
	dir := newProject(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "k8s"), 0755))

	out, err := execute(t, "detect", "-d", dir)
	require.NoError(t, err)
	assert.Equal(t, "kubernetes\t(k8s/ directory)\n", out)
}

func TestResolve(t *testing.T) {
	dir := newProject(t)

	out, err := execute(t, "resolve", "-d", dir, "--profile", "prod", "jdbc://${db.host}:${db.port:5432}")
	require.NoError(t, err)
	assert.Equal(t, "jdbc://db.prod:5432", strings.TrimSpace(out))

	out, err = execute(t, "resolve", "-d", dir, "${db.host}")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", strings.TrimSpace(out))
}

func TestResolve_RequiresText(t *testing.T) {
	_, err := execute(t, "resolve", "-d", newProject(t))
	assert.Error(t, err)
}

func TestAnalyze_WriteFailureExitsNonZero(t *testing.T) {
	dir := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocked"), []byte("x"), 0644))

	out, err := execute(t, "analyze", "-d", dir, "-o", "blocked/out", "--no-scripts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 of 3 manifests")
	assert.Contains(t, out, "FAILED")
}

func TestInit_WritesSettingsOnce(t *testing.T) {
	dir := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.gradle"), []byte("plugins {\n  id 'com.google.cloud.tools.jib'\n}\n"), 0644))

	out, err := execute(t, "init", "-d", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Detected kubernetes")

	path := filepath.Join(dir, ".infrascan.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "platform: kubernetes")

	out, err = execute(t, "init", "-d", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	_, err = execute(t, "init", "-d", dir, "--force", "--platform", "vm")
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "platform: vm")
}
