// pkg/interaction/types.go

package interaction

const (
	DefaultYesPrompt = "Y/n"
	DefaultNoPrompt  = "y/N"
)

const (
	YesShort = "y"
	YesLong  = "yes"
	NoShort  = "n"
	NoLong   = "no"
)
