// pkg/shared/constants.go

package shared

// Version can be set during build with -ldflags
var Version = "dev"

const (
	AppID          = "agms"
	AppName        = "AGMS Enterprise"
	AppOrg         = "AG Multi Services"
	EnvPrefix      = "AGMS"
	DefaultBranch  = "main"
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

const (
	// Permission modes (in octal)
	DirPermStandard        = 0755
	FilePermOwnerRWX       = 0700
	FilePermStandard       = 0644
	FilePermOwnerReadWrite = 0600
)

const (
	LogFileName         = "agms.log"
	TelemetryFileName   = "telemetry.jsonl"
	CrashFilePrefix     = "crash_"
	CrashFileExt        = ".log"
	CrashTimeLayout     = "20060102_150405"
	ConfigFileName      = "agms.yaml"
	ConfigTemplateName  = "agms.template.yaml"
	RequirementsName    = "requirements.yaml"
	EnvFileName         = ".env"
	SetupMarkerName     = ".setup_done"
	KeystoreName        = ".keystore"
	BackupFilePrefix    = "backup_"
	BackupFileExt       = ".tar.zst"
	DefaultAdminEmail   = "admin@agms.local"
	DefaultAdminName    = "Dev Admin"
	DefaultAdminRole    = "super_admin"
	SetupMarkerContents = "1.0"
)

// GenericCrashMessage is what the operator sees when a fault is intercepted.
// Raw fault text only goes to the crash artifact and the log.
const GenericCrashMessage = "AGMS Enterprise hit an unexpected error and has to close."
