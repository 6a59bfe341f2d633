package config

const (
	defaultEngineBaseURL         = "http://localhost:8181/ws"
	defaultEngineRequestTimeout  = 30
	defaultDownloadDir           = "~/Documents/bindery"
	defaultDataDir               = "~/.local/share/bindery"
	defaultLogDir                = "~/.local/share/bindery/logs"
	defaultSocketPath            = "~/.local/share/bindery/binderyd.sock"
	defaultJobPollInterval       = 2
	defaultAlivePollInterval     = 10
	defaultErrorRetryInterval    = 5
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Engine: Engine{
			BaseURL:        defaultEngineBaseURL,
			RequestTimeout: defaultEngineRequestTimeout,
		},
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			SocketPath:  defaultSocketPath,
		},
		Workflow: Workflow{
			JobPollInterval:    defaultJobPollInterval,
			AlivePollInterval:  defaultAlivePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobEvents:      true,
			BatchEvents:    true,
			EngineEvents:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
