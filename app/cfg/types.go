package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Discogs account configuration
	DiscogsUsername string
	DiscogsToken    string

	// Last.fm configuration
	LastfmAPIKey string

	// Application configuration
	Port              string
	BaseUrl           string
	CoversDir         string
	ExportDir         string
	ExportConfigFile  string
	ImportPageSize    int
	ImportTTLHours    int
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
