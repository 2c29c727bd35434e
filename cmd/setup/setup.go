// cmd/setup/setup.go

package setup

import (
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_cli"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/installer"
	"github.com/spf13/cobra"
)

var (
	adminPassword string
	assumeYes     bool
	skipDeps      bool
)

// SetupCmd performs the first-time installation.
var SetupCmd = &cobra.Command{
	Use:     "setup",
	Aliases: []string{"install"},
	Short:   "Install AGMS Enterprise into the installation root",
	Long: `Installs helper libraries, creates the directory layout and the
configuration file, migrates the database and creates the administrator
account (admin@agms.local). Safe to run again.`,
	RunE: agms_cli.Wrap(func(rc *agms_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		_, err := installer.Run(rc, installer.Options{
			AdminPassword: adminPassword,
			AssumeYes:     assumeYes,
			SkipDeps:      skipDeps,
		})
		return err
	}),
}

func init() {
	SetupCmd.Flags().StringVar(&adminPassword, "admin-password", "", "password for the administrator account (prompted when empty)")
	SetupCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "install optional libraries without asking")
	SetupCmd.Flags().BoolVar(&skipDeps, "skip-deps", false, "do not check helper libraries")
}
