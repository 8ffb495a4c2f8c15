package cfg

const (
	CommandRun      = "run"
	CommandSnapshot = "snapshot"
	CommandServe    = "serve"
	CommandExport   = "export"
)

type Cfg struct {
	// Selected subcommand
	Command string

	// Database configuration
	DBDriver string
	DBDSN    string

	// Storage locations
	DataDir      string
	SourcesDir   string
	PatternsFile string
	ExportDir    string

	// Pipeline configuration
	GraceThreshold int
	MinSampleSize  int
	WorkerCount    int
	Schedule       string
	RedisURL       string

	// HTTP configuration
	Port         string
	APIAccessKey string

	// Command arguments
	Sources      []string
	SnapshotDate string
	ExportDate   string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
