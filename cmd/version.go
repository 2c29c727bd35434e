/* cmd/version.go */

package cmd

import (
	"fmt"
	"runtime"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	"github.com/spf13/cobra"
)

// VersionCmd prints the build version. It needs no installation directory.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agms version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s/%s, %s)\n",
			shared.AppID, shared.Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	},
}
