// Package detect decides whether a project deploys to a VM/physical host or to
// Kubernetes.
package detect

import (
	"fmt"
	"strings"
)

// Target is the deployment platform a manifest is generated for.
type Target int

const (
	TargetVM Target = iota
	TargetKubernetes
)

func (t Target) String() string {
	if t == TargetKubernetes {
		return "kubernetes"
	}
	return "vm"
}

// ParseTarget accepts "vm" and "kubernetes" (or "k8s").
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vm":
		return TargetVM, nil
	case "kubernetes", "k8s":
		return TargetKubernetes, nil
	default:
		return TargetVM, fmt.Errorf("unknown platform %q (valid: vm, kubernetes)", s)
	}
}

// KubernetesPlugins are build plugins that only make sense for container
// deployments.
var KubernetesPlugins = []string{
	"com.google.cloud.tools.jib",
	"org.springframework.boot.experimental.thin-launcher",
}

// KubernetesKeywords are matched case-insensitively against the raw
// application config.
var KubernetesKeywords = []string{
	"kubernetes.io",
	"k8s.",
	"mkube-proxy",
	"livenessstate",
	"readinessstate",
	"liveness-probe",
	"readiness-probe",
}

// ManifestsDir is the conventional directory holding Kubernetes manifests.
const ManifestsDir = "k8s"

// Signals are project facts gathered by the build tooling.
type Signals struct {
	// Plugins holds the ids of build plugins applied to the project.
	Plugins []string
}

// FSProbe answers filesystem questions relative to the project root.
type FSProbe interface {
	DirExists(rel string) bool
}

// Decision is a detected target together with the signal that decided it.
type Decision struct {
	Target Target
	Reason string
}

// Detect returns the deployment target. Checks run in priority order and the
// first match wins: build plugin, config keyword, manifests directory, and
// finally the VM default.
func Detect(signals Signals, configText string, probe FSProbe) Target {
	return Explain(signals, configText, probe).Target
}

// Explain is Detect with the deciding signal attached.
func Explain(signals Signals, configText string, probe FSProbe) Decision {
	for _, want := range KubernetesPlugins {
		for _, have := range signals.Plugins {
			if have == want {
				return Decision{TargetKubernetes, "build plugin " + want}
			}
		}
	}

	lower := strings.ToLower(configText)
	for _, keyword := range KubernetesKeywords {
		if strings.Contains(lower, keyword) {
			return Decision{TargetKubernetes, "config keyword " + keyword}
		}
	}

	if probe != nil && probe.DirExists(ManifestsDir) {
		return Decision{TargetKubernetes, ManifestsDir + "/ directory"}
	}

	return Decision{TargetVM, "default"}
}
