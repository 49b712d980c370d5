// Package manifest defines the requirements document handed to the
// validation scripts, and writes it to disk.
package manifest

import (
	"encoding/json"

	"infrascan/internal/detect"
	"infrascan/internal/pattern"
)

// SchemaVersion is the version of the manifest layout.
const SchemaVersion = "1.0"

// DefaultMethod is the probe verb used for API checks.
const DefaultMethod = "HEAD"

// ExpectedStatusCodes are the HTTP statuses that count as "reachable".
// Auth and not-found answers still prove the endpoint is up.
var ExpectedStatusCodes = []int{200, 301, 302, 401, 403, 404}

// Platform is the manifest's deployment platform.
type Platform string

const (
	PlatformVM         Platform = "vm"
	PlatformKubernetes Platform = "kubernetes"
)

// PlatformOf maps a detected target to its manifest platform.
func PlatformOf(t detect.Target) Platform {
	if t == detect.TargetKubernetes {
		return PlatformKubernetes
	}
	return PlatformVM
}

// FileCheck is a file that must exist on the target.
type FileCheck struct {
	Path        string           `json:"path" yaml:"path"`
	Location    pattern.Location `json:"location" yaml:"location"`
	Critical    bool             `json:"critical" yaml:"critical"`
	Description string           `json:"description" yaml:"description"`
}

// ApiCheck is a remote endpoint that must be reachable from the target.
type ApiCheck struct {
	URL            string `json:"url" yaml:"url"`
	Method         string `json:"method" yaml:"method"`
	ExpectedStatus []int  `json:"expectedStatus" yaml:"expectedStatus"`
	Critical       bool   `json:"critical" yaml:"critical"`
	Description    string `json:"description" yaml:"description"`
}

// NewApiCheck creates an API check with the fixed expected status set.
func NewApiCheck(url, method string, critical bool, description string) ApiCheck {
	codes := make([]int, len(ExpectedStatusCodes))
	copy(codes, ExpectedStatusCodes)
	return ApiCheck{
		URL:            url,
		Method:         method,
		ExpectedStatus: codes,
		Critical:       critical,
		Description:    description,
	}
}

// ConfigMapCheck is a Kubernetes ConfigMap the workload mounts.
type ConfigMapCheck struct {
	Name        string `json:"name" yaml:"name"`
	Critical    bool   `json:"critical" yaml:"critical"`
	Description string `json:"description" yaml:"description"`
}

// SecretCheck is a Kubernetes Secret the workload needs.
type SecretCheck struct {
	Name        string `json:"name" yaml:"name"`
	Critical    bool   `json:"critical" yaml:"critical"`
	Description string `json:"description" yaml:"description"`
}

// PvcCheck is a PersistentVolumeClaim backing a networked-storage root.
type PvcCheck struct {
	Name        string `json:"name" yaml:"name"`
	Critical    bool   `json:"critical" yaml:"critical"`
	Description string `json:"description" yaml:"description"`
	MountPath   string `json:"mountPath" yaml:"mountPath"`
}

// Infrastructure groups every requirement category. The Kubernetes-only
// categories and Namespace are left out of VM manifests when serialized.
type Infrastructure struct {
	CompanyDomain string
	Namespace     string
	Files         []FileCheck
	ExternalAPIs  []ApiCheck
	ConfigMaps    []ConfigMapCheck
	Secrets       []SecretCheck
	Pvcs          []PvcCheck
}

// Manifest is the requirements document for one (profile, platform).
type Manifest struct {
	Version        string
	Project        string
	Environment    string
	Platform       Platform
	Infrastructure Infrastructure
}

// New creates an empty manifest for project/environment/platform.
func New(project, environment string, platform Platform) *Manifest {
	return &Manifest{
		Version:     SchemaVersion,
		Project:     project,
		Environment: environment,
		Platform:    platform,
	}
}

// wire layouts keep the serialized key order fixed.

type wireManifest struct {
	Version        string      `json:"version" yaml:"version"`
	Project        string      `json:"project" yaml:"project"`
	Environment    string      `json:"environment" yaml:"environment"`
	Platform       Platform    `json:"platform" yaml:"platform"`
	Infrastructure interface{} `json:"infrastructure" yaml:"infrastructure"`
}

type vmInfrastructure struct {
	CompanyDomain string      `json:"company_domain" yaml:"company_domain"`
	Files         []FileCheck `json:"files" yaml:"files"`
	ExternalAPIs  []ApiCheck  `json:"external_apis" yaml:"external_apis"`
}

type k8sInfrastructure struct {
	CompanyDomain string           `json:"company_domain" yaml:"company_domain"`
	Namespace     string           `json:"namespace" yaml:"namespace"`
	Files         []FileCheck      `json:"files" yaml:"files"`
	ExternalAPIs  []ApiCheck       `json:"external_apis" yaml:"external_apis"`
	ConfigMaps    []ConfigMapCheck `json:"configmaps" yaml:"configmaps"`
	Secrets       []SecretCheck    `json:"secrets" yaml:"secrets"`
	Pvcs          []PvcCheck       `json:"pvcs" yaml:"pvcs"`
}

func (m *Manifest) wire() wireManifest {
	w := wireManifest{
		Version:     m.Version,
		Project:     m.Project,
		Environment: m.Environment,
		Platform:    m.Platform,
	}
	infra := m.Infrastructure
	if m.Platform == PlatformKubernetes {
		w.Infrastructure = k8sInfrastructure{
			CompanyDomain: infra.CompanyDomain,
			Namespace:     infra.Namespace,
			Files:         nonNil(infra.Files),
			ExternalAPIs:  nonNil(infra.ExternalAPIs),
			ConfigMaps:    nonNil(infra.ConfigMaps),
			Secrets:       nonNil(infra.Secrets),
			Pvcs:          nonNil(infra.Pvcs),
		}
	} else {
		w.Infrastructure = vmInfrastructure{
			CompanyDomain: infra.CompanyDomain,
			Files:         nonNil(infra.Files),
			ExternalAPIs:  nonNil(infra.ExternalAPIs),
		}
	}
	return w
}

// MarshalJSON emits the platform-specific layout.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.wire())
}

// MarshalYAML emits the platform-specific layout.
func (m *Manifest) MarshalYAML() (interface{}, error) {
	return m.wire(), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
