package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"infrascan/internal/config"
	"infrascan/internal/detect"
	"infrascan/internal/loader"
)

var initForce bool

// initCmd writes a settings file for the project
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write " + config.DefaultFile + " for the current project",
	Long: `Creates the tool settings file in the project directory, seeded with the
effective settings and the detected platform. An existing file is kept unless
--force is given.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing settings file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := settingsPath
	if path == "" {
		path = filepath.Join(projectDir, config.DefaultFile)
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		fmt.Fprintf(out, "%s already exists (use --force to overwrite)\n", path)
		return nil
	}

	settings := *cfg
	if settings.Analysis.Platform == "auto" {
		a, err := newAnalyzer()
		if err != nil {
			return err
		}
		text, _, err := loader.ReadSource(a.ConfigPath())
		if err != nil {
			return err
		}
		if d := a.Detect(text); d.Reason != "default" {
			settings.Analysis.Platform = d.Target.String()
			fmt.Fprintf(out, "Detected %s (%s)\n", d.Target, d.Reason)
		} else {
			settings.Analysis.Platform = detect.TargetVM.String()
		}
	}

	if err := settings.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}
