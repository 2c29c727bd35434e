// cmd/logs/logs.go

package logs

import (
	"fmt"
	"os"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_cli"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/crash"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	lines    int
	showBody bool
)

// LogsCmd represents the parent "logs" command.
var LogsCmd = &cobra.Command{
	Use:     "logs",
	Aliases: []string{"log"},
	Short:   "Inspect the operational log and crash reports",
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the last lines of the operational log",
	RunE: agms_cli.Wrap(func(rc *agms_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		path := rc.Layout.LogFile()
		tail, err := logger.TailLogFile(path, lines)
		if err != nil {
			rc.Log.Warn("Cannot read operational log", zap.String("path", path), zap.Error(err))
			return err
		}
		out := cmd.OutOrStdout()
		for _, line := range tail {
			fmt.Fprintln(out, logger.ColorizeLogLine(line))
		}
		return nil
	}),
}

var crashesCmd = &cobra.Command{
	Use:   "crashes",
	Short: "List crash reports, newest first",
	RunE: agms_cli.Wrap(func(rc *agms_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		artifacts, err := crash.List(rc.Layout.CrashDir())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(artifacts) == 0 {
			fmt.Fprintln(out, "No crash reports.")
			return nil
		}
		for i, a := range artifacts {
			fmt.Fprintf(out, "%s  %s\n", a.Timestamp.Format("2006-01-02 15:04:05"), a.Path)
			if showBody && i == 0 {
				body, err := os.ReadFile(a.Path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%s\n", body)
			}
		}
		return nil
	}),
}

func init() {
	showCmd.Flags().IntVarP(&lines, "lines", "n", 100, "number of trailing lines to print (0 for all)")
	crashesCmd.Flags().BoolVar(&showBody, "latest", false, "also print the newest report")
	LogsCmd.AddCommand(showCmd, crashesCmd)
}
