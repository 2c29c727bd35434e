// cmd/launch/launch.go

package launch

import (
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_cli"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/launcher"
	"github.com/spf13/cobra"
)

var (
	skipDeps  bool
	assumeYes bool
	headless  bool
)

// LaunchCmd boots AGMS Enterprise and runs it until the operator quits.
var LaunchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Start AGMS Enterprise",
	Long: `Checks helper libraries, prepares the installation directory, boots
every subsystem in order and runs the interactive surface. Exit codes:
0 normal or login cancelled, 1 startup failure, 2 configuration error,
3 unhandled fault, 130 interrupted.`,
	RunE: agms_cli.Wrap(func(rc *agms_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		return launcher.Run(rc, launcher.Options{
			SkipDeps:  skipDeps,
			AssumeYes: assumeYes,
			Headless:  headless,
		})
	}),
}

func init() {
	LaunchCmd.Flags().BoolVar(&skipDeps, "skip-deps", false, "do not check helper libraries")
	LaunchCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "continue even when required libraries could not be installed")
	LaunchCmd.Flags().BoolVar(&headless, "headless", false, "run background services without the interactive surface")
}
