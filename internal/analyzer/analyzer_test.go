package analyzer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"infrascan/internal/config"
	"infrascan/internal/detect"
	"infrascan/internal/extract"
	"infrascan/internal/manifest"
	"infrascan/internal/provision"
	"infrascan/internal/tree"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const applicationYAML = `
spring:
  application:
    name: orders
app:
  base-url: https://api.company.com
  cert: /opt/certs/app.pem
---
spring:
  config:
    activate:
      on-profile: prod
  redis:
    host: r.local
app:
  key: /nas1/files/key.pem
`

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func defaultOptions(dir string) Options {
	cfg := config.DefaultConfig()
	opts, err := OptionsFromConfig(cfg, dir)
	if err != nil {
		panic(err)
	}
	return opts
}

func readManifest(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestRun_KubernetesProject(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/main/resources/application.yml": applicationYAML,
		"build.gradle":                       "plugins {\n  id 'com.google.cloud.tools.jib' version '3.4.0'\n}\n",
	})
	opts := defaultOptions(dir)
	opts.ProjectName = "orders"

	a, err := New(opts)
	require.NoError(t, err)

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "kubernetes", report.Target)
	assert.Equal(t, "build plugin com.google.cloud.tools.jib", report.Reason)
	assert.True(t, report.ConfigFound)
	assert.Len(t, report.RunID, 8)
	assert.Zero(t, report.Failed())
	require.Len(t, report.Generated(), 3)

	out := filepath.Join(dir, "build", "infrastructure")
	for _, profile := range []string{"dev", "stg", "prod"} {
		assert.FileExists(t, filepath.Join(out, "requirements-k8s-"+profile+".json"))
	}

	prod := readManifest(t, filepath.Join(out, "requirements-k8s-prod.json"))
	assert.Equal(t, "orders", prod["project"])
	assert.Equal(t, "prod", prod["environment"])
	assert.Equal(t, "kubernetes", prod["platform"])
	infra := prod["infrastructure"].(map[string]interface{})
	assert.Equal(t, "production", infra["namespace"])
	assert.Len(t, infra["files"], 2)
	assert.Len(t, infra["secrets"], 2)
	assert.Len(t, infra["pvcs"], 1)

	dev := readManifest(t, filepath.Join(out, "requirements-k8s-dev.json"))
	devInfra := dev["infrastructure"].(map[string]interface{})
	assert.Equal(t, "development", devInfra["namespace"])
	assert.Len(t, devInfra["files"], 1)
	assert.Len(t, devInfra["pvcs"], 0)

	require.NotNil(t, report.Script)
	assert.False(t, report.Script.Skipped)
	assert.FileExists(t, filepath.Join(dir, "bamboo-scripts", provision.KubernetesScript))

	again, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, again.Script.Skipped)
	assert.NotEqual(t, report.RunID, again.RunID)
}

func TestRun_VMProjectWithoutConfig(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"build.gradle": "plugins {\n  id 'java'\n}\n",
	})
	opts := defaultOptions(dir)
	opts.Profiles = []string{"dev", "qa"}
	opts.Scripts = false

	a, err := New(opts)
	require.NoError(t, err)

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "vm", report.Target)
	assert.Equal(t, "default", report.Reason)
	assert.False(t, report.ConfigFound)
	assert.Nil(t, report.Script)
	assert.Equal(t, filepath.Base(dir), report.Project)

	qa := readManifest(t, filepath.Join(dir, "build", "infrastructure", "requirements-qa.json"))
	infra := qa["infrastructure"].(map[string]interface{})
	assert.Equal(t, "company.com", infra["company_domain"])
	assert.NotContains(t, infra, "namespace")
	assert.NotContains(t, infra, "secrets")
	assert.NoDirExists(t, filepath.Join(dir, "bamboo-scripts"))
}

func TestRun_ForcedPlatformAndYAML(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/main/resources/application.yml": applicationYAML,
		"k8s/deployment.yaml":                "kind: Deployment\n",
	})
	opts := defaultOptions(dir)
	opts.Platform = "vm"
	opts.Format = manifest.FormatYAML
	opts.Profiles = []string{"prod"}
	opts.Scripts = false

	a, err := New(opts)
	require.NoError(t, err)
	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "vm", report.Target)
	assert.Equal(t, "forced", report.Reason)
	assert.FileExists(t, filepath.Join(dir, "build", "infrastructure", "requirements-prod.yaml"))
}

func TestRun_WriteFailureIsPerProfile(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/main/resources/application.yml": applicationYAML,
		"blocked":                            "not a directory",
	})
	opts := defaultOptions(dir)
	opts.OutputDir = "blocked/out"
	opts.Scripts = false

	a, err := New(opts)
	require.NoError(t, err)
	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Failed())
	assert.Empty(t, report.Generated())
	for _, p := range report.Profiles {
		assert.NotEmpty(t, p.Error, p.Profile)
		assert.Positive(t, p.Files, p.Profile)
	}
}

func TestRun_Cancelled(t *testing.T) {
	dir := writeProject(t, nil)
	a, err := New(defaultOptions(dir))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	dir := t.TempDir()

	opts := defaultOptions(dir)
	opts.Profiles = nil
	_, err := New(opts)
	assert.Error(t, err)

	opts = defaultOptions(dir)
	opts.Platform = "lambda"
	_, err = New(opts)
	assert.Error(t, err)

	a, err := New(Options{ProjectDir: dir, Profiles: []string{"dev"}})
	require.NoError(t, err)
	assert.Equal(t, manifest.FormatJSON, a.Options().Format)
	assert.Equal(t, provision.DefaultDir, a.Options().ScriptsDir)
	assert.Equal(t, 1, a.Options().Parallelism)
}

func TestOptionsFromConfig_BadFormat(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Analysis.Format = "toml"
	_, err := OptionsFromConfig(cfg, ".")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/main/resources/application.yml": applicationYAML,
	})
	a, err := New(defaultOptions(dir))
	require.NoError(t, err)

	assert.Equal(t, "host=r.local", a.Resolve("host=${spring.redis.host}", "prod"))
	assert.Equal(t, "host=none", a.Resolve("host=${spring.redis.host:none}", "dev"))
	name, ok := tree.LookupString(a.Tree("dev"), "spring.application.name")
	assert.True(t, ok)
	assert.Equal(t, "orders", name)
}

func TestBuild_EndToEnd(t *testing.T) {
	root, err := tree.Parse("spring:\n  redis:\n    host: r.local\nx: /nas1/files/key.pem\n")
	require.NoError(t, err)

	m := Build("svc", "prod", detect.TargetKubernetes, extract.New(root))

	want := manifest.New("svc", "prod", manifest.PlatformKubernetes)
	want.Infrastructure = manifest.Infrastructure{
		CompanyDomain: "company.com",
		Namespace:     "production",
		Files: []manifest.FileCheck{{
			Path: "/nas1/files/key.pem", Location: "nas", Critical: true, Description: "x",
		}},
		ExternalAPIs: []manifest.ApiCheck{},
		ConfigMaps:   []manifest.ConfigMapCheck{{Name: "app-config", Critical: true, Description: "application base settings"}},
		Secrets: []manifest.SecretCheck{
			{Name: "redis-credentials", Critical: true, Description: "Redis credentials"},
			{Name: "file-keys", Critical: true, Description: "file-based authentication keys"},
		},
		Pvcs: []manifest.PvcCheck{{
			Name: "nas-nas1-files", Critical: true, Description: "NAS storage: /nas1/files", MountPath: "/nas1/files",
		}},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_RerunsOnChange(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/main/resources/application.yml": "app:\n  cert: /opt/certs/a.pem\n",
	})
	opts := defaultOptions(dir)
	opts.Profiles = []string{"dev"}
	opts.Scripts = false
	a, err := New(opts)
	require.NoError(t, err)

	runs := make(chan *Report, 4)
	w := NewWatcher(a, 50*time.Millisecond, func(r *Report, err error) {
		if err == nil {
			runs <- r
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}

	require.NoError(t, os.WriteFile(a.ConfigPath(), []byte("app:\n  cert: /opt/certs/a.pem\n  key: /opt/certs/b.key\n"), 0644))

	select {
	case r := <-runs:
		require.Len(t, r.Profiles, 1)
		assert.Equal(t, 2, r.Profiles[0].Files)
	case <-time.After(5 * time.Second):
		t.Fatal("no rerun after config change")
	}
	assert.GreaterOrEqual(t, w.Runs(), 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	opts := defaultOptions(t.TempDir())
	opts.ConfigPath = "nope/app.yml"
	a, err := New(opts)
	require.NoError(t, err)

	err = NewWatcher(a, 0, nil).Run(context.Background())
	assert.Error(t, err)
}
