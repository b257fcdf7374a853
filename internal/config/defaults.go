package config

const (
	defaultConfigPath           = "~/.config/watchlist/config.toml"
	defaultDataDir              = "~/.local/share/watchlist"
	defaultUploadsDirName       = "uploads"
	defaultLogDir               = "~/.local/share/watchlist/logs"
	defaultTMDBLanguage         = "en-US"
	defaultTMDBBaseURL          = "https://api.themoviedb.org/3"
	defaultTMDBRequestTimeout   = 10
	defaultTTLHours             = 24
	defaultMaxConcurrentFetches = 4
	defaultFetchTimeoutSeconds  = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultNotifyTimeout        = 10
	defaultTelemetryService     = "watchlist"
	defaultTelemetryEndpoint    = "localhost:4318"
)

var defaultRegions = []string{"GB"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	regions := make([]string, len(defaultRegions))
	copy(regions, defaultRegions)
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		TMDB: TMDB{
			Language:              defaultTMDBLanguage,
			BaseURL:               defaultTMDBBaseURL,
			RequestTimeoutSeconds: defaultTMDBRequestTimeout,
		},
		Availability: Availability{
			TTLHours:             defaultTTLHours,
			MaxConcurrentFetches: defaultMaxConcurrentFetches,
			FetchTimeoutSeconds:  defaultFetchTimeoutSeconds,
			DefaultRegions:       regions,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
		},
		Telemetry: Telemetry{
			Endpoint:    defaultTelemetryEndpoint,
			ServiceName: defaultTelemetryService,
		},
	}
}
