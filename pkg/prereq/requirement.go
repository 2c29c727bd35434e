// pkg/prereq/requirement.go

package prereq

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/agms/config"
)

// Requirement is one declared helper library.
type Requirement struct {
	Probe    string // import name checked with the interpreter
	Spec     string // pip specifier, passed through verbatim
	Feature  string
	Required bool
}

// FromManifest flattens a manifest into requirements, required first.
func FromManifest(m *config.Manifest) []Requirement {
	out := make([]Requirement, 0, len(m.Required)+len(m.Optional))
	for _, d := range m.Required {
		out = append(out, Requirement{Probe: d.Probe, Spec: d.Spec, Feature: d.Feature, Required: true})
	}
	for _, d := range m.Optional {
		out = append(out, Requirement{Probe: d.Probe, Spec: d.Spec, Feature: d.Feature})
	}
	return out
}

// Attempt modes, in the order they are tried.
const (
	ModeElevated = "elevated"
	ModePlain    = "plain"
)

// Attempt is one install invocation.
type Attempt struct {
	Mode    string
	Err     error
	Summary string
}

// InstallRecord is the outcome for one requirement.
type InstallRecord struct {
	Requirement
	Present   bool // resolvable before any install
	Installed bool // resolvable after this run
	Attempts  []Attempt
}

// Report is the outcome of one Ensure run.
type Report struct {
	Records []InstallRecord
}

// RequiredFailures lists required libraries still missing.
func (r *Report) RequiredFailures() []InstallRecord {
	var out []InstallRecord
	for _, rec := range r.Records {
		if rec.Required && !rec.Installed {
			out = append(out, rec)
		}
	}
	return out
}

// OptionalMissing lists optional libraries that are not available.
func (r *Report) OptionalMissing() []InstallRecord {
	var out []InstallRecord
	for _, rec := range r.Records {
		if !rec.Required && !rec.Installed {
			out = append(out, rec)
		}
	}
	return out
}

// Remediation is the manual command for the required failures, with each
// specifier exactly as declared.
func (r *Report) Remediation() string {
	failed := r.RequiredFailures()
	if len(failed) == 0 {
		return ""
	}
	specs := make([]string, len(failed))
	for i, rec := range failed {
		specs[i] = rec.Spec
	}
	return "pip install " + strings.Join(specs, " ")
}

// Installed lists the libraries this run installed.
func (r *Report) Installed() []InstallRecord {
	var out []InstallRecord
	for _, rec := range r.Records {
		if rec.Installed && !rec.Present {
			out = append(out, rec)
		}
	}
	return out
}
