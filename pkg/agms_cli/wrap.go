// pkg/agms_cli/wrap.go

package agms_cli

import (
	"context"
	"fmt"
	"os"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/appconfig"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootFlag names the persistent flag selecting the install root.
const RootFlag = "root"

// Wrap resolves the install layout, loads configuration, initializes the
// file logger and tracing, and runs fn with a fresh RuntimeContext. A panic
// that escapes fn is converted into an unhandled-fault error.
func Wrap(fn func(rc *agms_io.RuntimeContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		logger.InitFallback()

		layout, err := resolveLayout(cmd)
		if err != nil {
			return err
		}

		cfg, err := appconfig.Load(layout)
		if err != nil {
			return err
		}

		if _, logErr := logger.Init(layout.LogFile(), logger.ParseLogLevel(cfg.Log.Level)); logErr != nil {
			zap.L().Warn("Operational log unavailable, logging to console only",
				zap.String("path", layout.LogFile()), zap.Error(logErr))
		}

		shutdown, telErr := telemetry.Init(shared.AppID, layout.TelemetryFile(), cfg.Telemetry.Enabled)
		if telErr != nil {
			zap.L().Warn("Telemetry disabled", zap.Error(telErr))
			shutdown, _ = telemetry.Init(shared.AppID, "", false)
		}
		defer func() { _ = shutdown(context.Background()) }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		rc := agms_io.NewContext(ctx, cmd.Name())
		rc.Layout = layout
		rc.Config = cfg
		rc.In = cmd.InOrStdin()
		rc.Out = cmd.ErrOrStderr()
		rc.Log = logger.WithNotices(rc.Log, rc.Out)
		defer rc.End(&err)

		defer func() {
			if r := recover(); r != nil {
				rc.Log.Error("Panic recovered", zap.Any("panic", r), zap.Stack("stack"))
				err = agms_err.NewUnhandledFault("", cerr.AssertionFailedf("panic: %v", r))
			}
		}()

		rc.LogRuntimeExecutionContext()

		err = fn(rc, cmd, args)
		if err != nil && !agms_err.IsExpectedUserError(err) {
			if _, classified := agms_err.AsClassified(err); !classified {
				err = cerr.WithStack(err)
			}
		}
		return err
	}
}

func resolveLayout(cmd *cobra.Command) (shared.Layout, error) {
	root := ""
	if f := cmd.Flag(RootFlag); f != nil {
		root = f.Value.String()
	}
	if root == "" {
		root = os.Getenv(shared.EnvPrefix + "_ROOT")
	}
	layout, err := shared.NewLayout(root)
	if err != nil {
		return shared.Layout{}, agms_err.NewConfigError(fmt.Sprintf("cannot resolve install root %q", root), err)
	}
	return layout, nil
}
