package extract

import (
	"strings"

	"infrascan/internal/manifest"
	"infrascan/internal/pattern"
	"infrascan/internal/tree"
)

// Keys whose presence implies a Kubernetes secret.
const (
	VaultURIKey        = "spring.cloud.vault.uri"
	SpringRedisHostKey = "spring.redis.host"
	RedisHostKey       = "redis.host"
)

// Synthesized resource names.
const (
	AppConfigName        = "app-config"
	VaultTokenName       = "vault-token"
	RedisCredentialsName = "redis-credentials"
	FileKeysName         = "file-keys"
	NASVolumePrefix      = "nas-"
)

func (e *Extractor) autoFiles() []manifest.FileCheck {
	var files []manifest.FileCheck
	e.scanLeaves(func(key, value string) {
		if !pattern.IsFilesystemPath(value) {
			return
		}
		files = append(files, manifest.FileCheck{
			Path:        value,
			Location:    pattern.ClassifyLocation(value),
			Critical:    true,
			Description: key,
		})
	})
	return files
}

func (e *Extractor) autoAPIs() []manifest.ApiCheck {
	var apis []manifest.ApiCheck
	e.scanLeaves(func(key, value string) {
		if !pattern.IsURL(value) {
			return
		}
		critical := strings.Contains(value, e.companyDomain)
		desc := key + " (external, warn only)"
		if critical {
			desc = key + " (company domain)"
		}
		apis = append(apis, manifest.NewApiCheck(value, manifest.DefaultMethod, critical, desc))
	})
	return apis
}

func (e *Extractor) autoConfigMaps() []manifest.ConfigMapCheck {
	return []manifest.ConfigMapCheck{{
		Name:        AppConfigName,
		Critical:    true,
		Description: "application base settings",
	}}
}

func (e *Extractor) autoSecrets() []manifest.SecretCheck {
	var secrets []manifest.SecretCheck
	if tree.Has(e.root, VaultURIKey) {
		secrets = append(secrets, manifest.SecretCheck{
			Name: VaultTokenName, Critical: true, Description: "Vault authentication token",
		})
	}
	if tree.Has(e.root, SpringRedisHostKey) || tree.Has(e.root, RedisHostKey) {
		secrets = append(secrets, manifest.SecretCheck{
			Name: RedisCredentialsName, Critical: true, Description: "Redis credentials",
		})
	}
	if len(e.Files()) > 0 {
		secrets = append(secrets, manifest.SecretCheck{
			Name: FileKeysName, Critical: true, Description: "file-based authentication keys",
		})
	}
	return secrets
}

// autoPvcs emits one volume per distinct NAS root. Two roots can map to the
// same volume name (/nas1/a-b and /nas1-a/b); only the first is kept.
func (e *Extractor) autoPvcs() []manifest.PvcCheck {
	var pvcs []manifest.PvcCheck
	roots := make(map[string]bool)
	owners := make(map[string]string)
	for _, f := range e.Files() {
		if f.Location != pattern.LocationNAS {
			continue
		}
		root, a, b, ok := nasRoot(f.Path)
		if !ok || roots[root] {
			continue
		}
		roots[root] = true

		name := NASVolumePrefix + a + "-" + b
		if owner, taken := owners[name]; taken {
			e.log.Warnf("pvcs: volume name %s for %s already used by %s; declare it under %s.pvcs", name, root, owner, ValidationRoot)
			continue
		}
		owners[name] = root
		pvcs = append(pvcs, manifest.PvcCheck{
			Name:        name,
			Critical:    true,
			Description: "NAS storage: " + root,
			MountPath:   root,
		})
	}
	return pvcs
}

// nasRoot returns the first two segments of an absolute path as
// "/<a>/<b>". Paths with fewer segments have no root.
func nasRoot(path string) (root, a, b string, ok bool) {
	parts := strings.Split(path, "/")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 3 {
		return "", "", "", false
	}
	a, b = parts[1], parts[2]
	return "/" + a + "/" + b, a, b, true
}
