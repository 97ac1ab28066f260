package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagProfile = flag.String("profile", "", "Host profile (kk, hs2, ai)")
	flagBalloon = flag.Bool("balloon", false, "Treat every vertex as belly region")
	flagParams  = flag.String("params", "", "Comma separated shape parameter files")
	flagWatch   = flag.Bool("watch", false, "Re-inflate when a parameter file changes")
	flagOut     = flag.String("out", "", "Write distilled blend shapes to this file")
	flagSaveCfg = flag.String("save-config", "", "Write the effective config to this path and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// ParamsFlag returns the raw -params value.
func ParamsFlag() string {
	return *flagParams
}

// WatchFlag reports whether -watch was given.
func WatchFlag() bool {
	return *flagWatch
}

// OutFlag returns the blend-shape output path.
func OutFlag() string {
	return *flagOut
}

// SaveConfigFlag returns the -save-config path.
func SaveConfigFlag() string {
	return *flagSaveCfg
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagProfile != "" {
		cfg.Host.Profile = *flagProfile
	}
	if *flagBalloon {
		cfg.Deform.Balloon = true
	}
}
