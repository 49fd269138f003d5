package config

// Legacy fixed constants of the original build script, kept as explicit
// defaults so a config file with only overrides reproduces the same build.
const (
	DefaultAppName     = "EaseView"
	DefaultEntryScript = "screen_overlay.py"
	DefaultIcon        = "icon.ico"
	DefaultIconGen     = "create_icons.py"
	DefaultTrayImage   = "tray_icon.png"
)

// Default returns the configuration equivalent to the legacy build script.
func Default() *Config {
	cfg := &Config{
		App: AppConfig{
			Name:          DefaultAppName,
			EntryScript:   DefaultEntryScript,
			Icon:          DefaultIcon,
			IconGenerator: DefaultIconGen,
			Assets: []AssetPair{
				{Source: DefaultIcon, Dest: "."},
				{Source: DefaultTrayImage, Dest: "."},
			},
		},
		Build: BuildConfig{
			OneFile:  true,
			Windowed: true,
			Clean:    true,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with legacy-equivalent defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = DefaultAppName
	}
	if cfg.App.EntryScript == "" {
		cfg.App.EntryScript = DefaultEntryScript
	}
	if len(cfg.Build.Artifacts) == 0 {
		cfg.Build.Artifacts = []string{"build", "dist", cfg.App.Name + ".spec"}
	}
	if len(cfg.Build.Packages) == 0 {
		cfg.Build.Packages = []string{"pyinstaller", "pillow", "pystray"}
	}
	if cfg.Build.ReportDir == "" {
		cfg.Build.ReportDir = "dist"
	}

	if cfg.Tools.Python == "" {
		cfg.Tools.Python = "python"
	}
	if cfg.Tools.Pip == "" {
		cfg.Tools.Pip = "pip"
	}
	if cfg.Tools.PyInstaller == "" {
		cfg.Tools.PyInstaller = "pyinstaller"
	}

	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = RetryBackoffLinear
	} else if m := NormalizeRetryBackoff(string(cfg.Retry.Backoff)); m != "" {
		cfg.Retry.Backoff = m
	} else {
		cfg.Retry.Backoff = RetryBackoffLinear
	}
	if cfg.Retry.InitialDelay == "" {
		cfg.Retry.InitialDelay = "1s"
	}
	if cfg.Retry.MaxDelay == "" {
		cfg.Retry.MaxDelay = "30s"
	}

	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = "2s"
	}

	if cfg.Notifications.NATS.Subject == "" {
		cfg.Notifications.NATS.Subject = "easepack.builds"
	}
}
