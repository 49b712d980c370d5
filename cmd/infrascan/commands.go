package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"infrascan/internal/analyzer"
	"infrascan/internal/loader"
)

// analyzeCmd writes manifests for every profile
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Generate requirement manifests for every profile",
	Long: `Detects the deployment platform, then writes one manifest per profile:
  VM:         <output-dir>/requirements-<profile>.json
  Kubernetes: <output-dir>/requirements-k8s-<profile>.json

The matching validation script is copied into bamboo-scripts/ on first run.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

// detectCmd prints the detected platform
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print the detected deployment platform and the deciding signal",
	Args:  cobra.NoArgs,
	RunE:  runDetect,
}

var resolveProfile string

// resolveCmd resolves ${...} placeholders
var resolveCmd = &cobra.Command{
	Use:   "resolve [text]",
	Short: "Resolve ${key:default} placeholders against a profile",
	Example: `  infrascan resolve '${spring.redis.host}' --profile prod
  infrascan resolve 'jdbc:postgresql://${db.host:localhost}/app'`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

// watchCmd reruns the analysis whenever the config source changes
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Analyze, then regenerate manifests on every config change",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveProfile, "profile", "", "Profile to resolve against (default: first configured profile)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newAnalyzer()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	report, err := a.Run(ctx)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report, a.Options().ProjectDir)

	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d manifests could not be written", n, len(report.Profiles))
	}
	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	a, err := newAnalyzer()
	if err != nil {
		return err
	}
	text, _, err := loader.ReadSource(a.ConfigPath())
	if err != nil {
		return err
	}
	d := a.Detect(text)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t(%s)\n", d.Target, d.Reason)
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := newAnalyzer()
	if err != nil {
		return err
	}
	profile := resolveProfile
	if profile == "" {
		profile = a.Options().Profiles[0]
	}
	fmt.Fprintln(cmd.OutOrStdout(), a.Resolve(args[0], profile))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newAnalyzer()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	report, err := a.Run(ctx)
	if err != nil {
		return err
	}
	printReport(out, report, a.Options().ProjectDir)

	w := analyzer.NewWatcher(a, cfg.GetWatchDebounce(), func(r *analyzer.Report, err error) {
		if err == nil {
			printReport(out, r, a.Options().ProjectDir)
		}
	})
	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", a.ConfigPath())
	return w.Run(ctx)
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printReport(w io.Writer, r *analyzer.Report, root string) {
	fmt.Fprintf(w, "Platform: %s (%s)\n", r.Target, r.Reason)
	if !r.ConfigFound {
		fmt.Fprintln(w, "Warning: config source not found, manifests contain defaults only")
	}
	for _, p := range r.Profiles {
		if p.Error != "" {
			fmt.Fprintf(w, "  %-6s FAILED: %s\n", p.Profile, p.Error)
			continue
		}
		fmt.Fprintf(w, "  %-6s %s (files=%d apis=%d configmaps=%d secrets=%d pvcs=%d)\n",
			p.Profile, rel(root, p.Path), p.Files, p.APIs, p.ConfigMaps, p.Secrets, p.Pvcs)
	}
	switch {
	case r.ScriptError != "":
		fmt.Fprintf(w, "Validation script: %s\n", r.ScriptError)
	case r.Script != nil && r.Script.Skipped:
		fmt.Fprintf(w, "Validation script: %s already present\n", rel(root, r.Script.Path))
	case r.Script != nil:
		fmt.Fprintf(w, "Validation script: created %s\n", rel(root, r.Script.Path))
		fmt.Fprintf(w, "  Commit it: git add %s\n", filepath.Dir(rel(root, r.Script.Path)))
	}
}

func rel(root, path string) string {
	if r, err := filepath.Rel(root, path); err == nil {
		return r
	}
	return path
}
