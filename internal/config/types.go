package config

type Config struct {
	DataDir         string
	CacheDir        string
	CacheLimitBytes int64
	EnableCache     bool
	EnableHistory   bool
	Workers         int
	MetricsFile     string
	LogLevel        string // debug/info/warn/error
	Output          Output
}

// Output is the fixed encode target applied to every job.
type Output struct {
	Codec        string
	Format       string // empty: guessed from the output file name
	SampleRate   int
	Channels     int
	SampleFormat string
	BitRate      int64
}
