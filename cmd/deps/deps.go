// cmd/deps/deps.go

package deps

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/agms/config"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_cli"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/prereq"
	"github.com/spf13/cobra"
)

var (
	withOptional bool
	assumeYes    bool
)

// DepsCmd groups the helper library commands.
var DepsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Check or install helper libraries",
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report which declared libraries are importable",
	RunE: agms_cli.Wrap(func(rc *agms_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		reqs, b, err := load(rc)
		if err != nil {
			return err
		}
		if _, err := b.CheckRuntime(rc); err != nil {
			return err
		}
		missing := 0
		for _, req := range reqs {
			state := "ok"
			if !b.Probe(rc, req) {
				state = "missing"
				if req.Required {
					missing++
				}
			}
			kind := "optional"
			if req.Required {
				kind = "required"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-9s %s\n", state, kind, req.Spec)
		}
		if missing > 0 {
			return agms_err.NewPrerequisiteFailure(fmt.Sprintf("%d required libraries missing", missing), nil,
				"Run: agms deps install")
		}
		return nil
	}),
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install missing required libraries",
	RunE: agms_cli.Wrap(func(rc *agms_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		reqs, b, err := load(rc)
		if err != nil {
			return err
		}
		report, err := b.Ensure(rc, reqs, prereq.Options{InstallOptional: withOptional})
		if err != nil {
			return err
		}
		prereq.Summarize(rc, report)
		return prereq.Confirm(rc, report, assumeYes)
	}),
}

func load(rc *agms_io.RuntimeContext) ([]prereq.Requirement, *prereq.Bootstrapper, error) {
	m, err := config.LoadManifest(rc.Layout.RequirementsFile())
	if err != nil {
		return nil, nil, agms_err.NewConfigError("cannot read helper library manifest", err)
	}
	return prereq.FromManifest(m), prereq.New(rc.Config.Deps.Python, rc.Log.Named("deps")), nil
}

func init() {
	installCmd.Flags().BoolVar(&withOptional, "optional", false, "also install optional libraries")
	installCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not fail when required libraries remain missing")
	DepsCmd.AddCommand(checkCmd, installCmd)
}
