// pkg/prereq/bootstrapper.go
//
// Dependency bootstrapper: verifies the helper interpreter and makes sure
// every declared library is importable. Missing required libraries are
// installed with two pip invocations, elevated first and plain second;
// the first success wins. Nothing here prompts; see Confirm.

package prereq

import (
	"context"
	"regexp"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_io"
	cerr "github.com/cockroachdb/errors"
	version "github.com/hashicorp/go-version"
	"go.uber.org/zap"
)

// MinPythonVersion is the oldest interpreter the helper libraries support.
const MinPythonVersion = "3.10"

var pythonVersionRe = regexp.MustCompile(`Python\s+(\d+\.\d+(?:\.\d+)?)`)

type Bootstrapper struct {
	Runner Runner
	Python string
}

// Options tune one Ensure run.
type Options struct {
	// InstallOptional installs missing optional libraries instead of only
	// reporting them.
	InstallOptional bool
}

// New returns a bootstrapper using real processes.
func New(python string, log *zap.Logger) *Bootstrapper {
	if python == "" {
		python = "python3"
	}
	return &Bootstrapper{Runner: ExecRunner{Logger: log}, Python: python}
}

// CheckRuntime verifies the interpreter exists and is recent enough.
func (b *Bootstrapper) CheckRuntime(rc *agms_io.RuntimeContext) (*version.Version, error) {
	out, err := b.Runner.Run(rc.Ctx, b.Python, "--version")
	if err != nil {
		return nil, agms_err.NewPrerequisiteFailure("Python "+MinPythonVersion+"+ is required but was not found", err,
			"Install Python "+MinPythonVersion+" or newer",
			"Or point deps.python at an existing interpreter")
	}

	m := pythonVersionRe.FindStringSubmatch(out)
	if m == nil {
		return nil, agms_err.NewPrerequisiteFailure("could not determine the Python version",
			cerr.Newf("unexpected output %q", agms_err.ExtractSummary(out, 1)))
	}
	have, err := version.NewVersion(m[1])
	if err != nil {
		return nil, agms_err.NewPrerequisiteFailure("could not determine the Python version", err)
	}
	if have.LessThan(version.Must(version.NewVersion(MinPythonVersion))) {
		return have, agms_err.NewPrerequisiteFailure(
			"Python "+MinPythonVersion+"+ required, found "+have.String(), nil,
			"Install Python "+MinPythonVersion+" or newer")
	}

	rc.Log.Info("Python runtime found", zap.String("version", have.String()), zap.String("interpreter", b.Python))
	return have, nil
}

// Probe reports whether the library resolves.
func (b *Bootstrapper) Probe(rc *agms_io.RuntimeContext, req Requirement) bool {
	_, err := b.Runner.Run(rc.Ctx, b.Python, "-c", "import "+req.Probe)
	return err == nil
}

// Install tries the elevated then the plain pip invocation and stops at the
// first success.
func (b *Bootstrapper) Install(rc *agms_io.RuntimeContext, req Requirement) InstallRecord {
	rec := InstallRecord{Requirement: req}

	modes := []struct {
		name string
		args []string
	}{
		{ModeElevated, []string{"-m", "pip", "install", req.Spec, "-q", "--break-system-packages"}},
		{ModePlain, []string{"-m", "pip", "install", req.Spec, "-q"}},
	}

	for _, m := range modes {
		out, err := b.Runner.Run(rc.Ctx, b.Python, m.args...)
		attempt := Attempt{Mode: m.name, Err: err}
		if err != nil {
			attempt.Summary = agms_err.ExtractSummary(out, 2)
		}
		rec.Attempts = append(rec.Attempts, attempt)

		if err == nil {
			rec.Installed = true
			rc.Log.Info("Library installed", zap.String("spec", req.Spec), zap.String("mode", m.name))
			return rec
		}
		rc.Log.Debug("Install attempt failed",
			zap.String("spec", req.Spec),
			zap.String("mode", m.name),
			zap.String("summary", attempt.Summary))
		if rc.Ctx.Err() != nil {
			break
		}
	}

	rc.Log.Warn("Library could not be installed", zap.String("spec", req.Spec), zap.Bool("required", req.Required))
	return rec
}

// Ensure probes every requirement and installs the missing ones. Only a
// broken runtime returns an error; library failures are in the report.
// Re-running after success is a no-op apart from the probes.
func (b *Bootstrapper) Ensure(rc *agms_io.RuntimeContext, reqs []Requirement, opts Options) (*Report, error) {
	// ASSESS
	if _, err := b.CheckRuntime(rc); err != nil {
		if ierr := interrupted(rc); ierr != nil {
			return nil, ierr
		}
		return nil, err
	}

	report := &Report{Records: make([]InstallRecord, 0, len(reqs))}
	for _, req := range reqs {
		if err := interrupted(rc); err != nil {
			return report, err
		}

		if b.Probe(rc, req) {
			report.Records = append(report.Records, InstallRecord{Requirement: req, Present: true, Installed: true})
			continue
		}

		// INTERVENE
		if !req.Required && !opts.InstallOptional {
			report.Records = append(report.Records, InstallRecord{Requirement: req})
			continue
		}
		report.Records = append(report.Records, b.Install(rc, req))
	}

	// EVALUATE
	if missing := report.OptionalMissing(); len(missing) > 0 {
		specs := make([]string, len(missing))
		for i, rec := range missing {
			specs[i] = rec.Spec
		}
		rc.Log.Info("Optional libraries not installed", zap.Strings("libraries", specs))
	}
	if failed := report.RequiredFailures(); len(failed) > 0 {
		rc.Log.Error("Required libraries missing", zap.Int("count", len(failed)), zap.String("remediation", report.Remediation()))
	} else {
		rc.Log.Info("All required libraries present", zap.Int("installed_now", len(report.Installed())))
	}
	return report, nil
}

// interrupted returns nil while rc is live. A signal maps to the interrupt
// exit code; any other cancellation is returned wrapped.
func interrupted(rc *agms_io.RuntimeContext) error {
	err := rc.Ctx.Err()
	if err == nil {
		return nil
	}
	err = cerr.Wrap(err, "dependency check interrupted")
	if cerr.Is(context.Cause(rc.Ctx), agms_err.ErrInterrupted) {
		return agms_err.NewInterrupted(err)
	}
	return err
}

// Err returns the installation failure for the report, or nil.
func (r *Report) Err() error {
	failed := r.RequiredFailures()
	if len(failed) == 0 {
		return nil
	}
	specs := make([]string, len(failed))
	for i, rec := range failed {
		specs[i] = rec.Spec
	}
	return agms_err.NewInstallationFailure(specs, r.Remediation())
}
