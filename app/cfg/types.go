package cfg

type Cfg struct {
	// Storage configuration
	DBPath  string
	DataDir string

	// Application configuration
	ConfigFile        string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Lemmy configuration
	LemmyServer string

	// Polling configuration
	MinInterval   int // seconds
	MaxInterval   int // seconds
	GrowthFactor  float64
	ShrinkFactor  float64
	FetchTimeout  int // seconds
	PostWindow    int // hours
	RetentionDays int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
