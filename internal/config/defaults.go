package config

const (
	defaultDataDir              = "~/.local/share/segreview"
	defaultLogDir               = "~/.local/share/segreview/logs"
	defaultAPIBind              = "127.0.0.1:7519"
	defaultViewerSocket         = "~/.local/share/segreview/viewer.sock"
	defaultViewerConnectTimeout = 5
	defaultViewerRequestTimeout = 60
	defaultUndoDepth            = 10
	defaultNotifyRequestTimeout = 10
	defaultMinFreeMiB           = 512
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogTailCapacity      = 500
)

func defaultEditorEffects() []string {
	return []string{"Paint", "Draw", "Erase", "Threshold", "Smoothing"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Viewer: Viewer{
			Socket:         defaultViewerSocket,
			ConnectTimeout: defaultViewerConnectTimeout,
			RequestTimeout: defaultViewerRequestTimeout,
		},
		Review: Review{
			EditorEffects: defaultEditorEffects(),
			UndoDepth:     defaultUndoDepth,
		},
		Notifications: Notifications{
			RequestTimeout:   defaultNotifyRequestTimeout,
			SessionStarted:   true,
			SessionCompleted: true,
			Errors:           true,
		},
		Preflight: Preflight{
			MinFreeMiB: defaultMinFreeMiB,
		},
		Logging: Logging{
			Format:       defaultLogFormat,
			Level:        defaultLogLevel,
			TailCapacity: defaultLogTailCapacity,
		},
	}
}
