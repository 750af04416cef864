package config

const (
	defaultLogDir            = "~/.local/share/wiffecg/logs"
	defaultArchiveDir        = "~/.local/share/wiffecg/archives"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultThreshold         = 0.6
	defaultRefractoryMS      = 200
	defaultMatchToleranceMS  = 40
	defaultMinAgreement      = 0.5
	defaultRRMinMS           = 250
	defaultRRMaxMS           = 2000
	defaultPageWidthMM       = 8.0 * 25.4
	defaultSpeedMMSec        = 100
	defaultPNGWidth          = 1600
	defaultPNGHeight         = 900
	defaultMinFreeMiB        = 64
	defaultConfigPathLiteral = "~/.config/wiffecg/config.toml"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:     defaultLogDir,
			ArchiveDir: defaultArchiveDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Detection: Detection{
			Threshold:        defaultThreshold,
			RefractoryMS:     defaultRefractoryMS,
			MatchToleranceMS: defaultMatchToleranceMS,
			MinAgreement:     defaultMinAgreement,
		},
		RR: RR{
			MinMS: defaultRRMinMS,
			MaxMS: defaultRRMaxMS,
		},
		Export: Export{
			PageWidthMM: defaultPageWidthMM,
			SpeedMMSec:  defaultSpeedMMSec,
			PNGWidth:    defaultPNGWidth,
			PNGHeight:   defaultPNGHeight,
		},
		Preflight: Preflight{
			MinFreeMiB: defaultMinFreeMiB,
		},
	}
}
