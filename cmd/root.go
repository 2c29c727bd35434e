/* cmd/root.go */

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/CodeMonkeyCybersecurity/agms/cmd/deps"
	"github.com/CodeMonkeyCybersecurity/agms/cmd/launch"
	"github.com/CodeMonkeyCybersecurity/agms/cmd/logs"
	"github.com/CodeMonkeyCybersecurity/agms/cmd/setup"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_cli"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var helpLogged bool

// RootCmd is the base command for agms.
var RootCmd = &cobra.Command{
	Use:   "agms",
	Short: "AGMS Enterprise launcher and installer",
	Long: `agms prepares and starts AGMS Enterprise: it checks helper libraries,
creates the installation directory and configuration, boots every
subsystem in a fixed order and supervises the running application.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: agms_cli.Wrap(func(rc *agms_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		rc.Log.Info("terminal prompt: No subcommand provided. Try `agms launch` or `agms help`.")
		return cmd.Help()
	}),
}

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	RootCmd.PersistentFlags().String(agms_cli.RootFlag, "", "installation root (default: directory of the executable, or $AGMS_ROOT)")

	log := logger.GetLogger()
	RootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if !helpLogged {
			log.Debug("Help requested", zap.String("command", cmd.Name()))
			helpLogged = true
		}
		if err := cmd.Usage(); err != nil {
			log.Warn("Failed to print usage", zap.Error(err))
		}
	})

	for _, subCmd := range []*cobra.Command{
		launch.LaunchCmd,
		setup.SetupCmd,
		deps.DepsCmd,
		logs.LogsCmd,
		VersionCmd,
	} {
		RootCmd.AddCommand(subCmd)
	}
}

// Execute runs the root command and exits with the code matching the
// error category.
func Execute() {
	handler := agms_cli.NewSignalHandler(context.Background())
	RegisterCommands()

	err := RootCmd.ExecuteContext(handler.Context())
	handler.Stop()

	code := agms_err.GetExitCode(err)
	if err != nil {
		if c, ok := agms_err.AsClassified(err); ok && code != agms_err.ExitOK {
			fmt.Fprintln(os.Stderr, c.Report())
		} else if code != agms_err.ExitOK {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", syncErr)
	}
	os.Exit(code)
}
