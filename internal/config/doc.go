// Package config provides centralized configuration management for the cable
// burial analysis toolkit. It handles loading configuration from multiple
// sources, validation, and reusable analysis profiles.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (config.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern CBA_* for namespacing:
//
//	CBA_SERVER_PORT=8080
//	CBA_LOGGING_LEVEL=info
//	CBA_ANALYSIS_DEPTH_TARGET_DEPTH=2.0
//	CBA_ANALYSIS_POSITION_DCC_THRESHOLD=3.0
//	CBA_PATHS_OUTPUT_DIR=/srv/surveys/output
//
// # Analysis Profiles
//
// Named profiles bundle depth, position and visualization settings so a
// survey campaign can be re-analyzed with consistent parameters:
//
//	p, err := config.LoadProfile("configurations/Deep_Water_Analysis.json")
//	if err != nil {
//	    return err
//	}
//	cfg.ApplyProfile(*p)
//
// Built-in profiles cover standard, high sensitivity and deep water
// analysis. WriteBuiltinProfiles materializes them as editable files.
//
// # Path Management
//
// Relative paths are resolved against Paths.BaseDir, which defaults to the
// working directory at load time:
//
//	outputDir := cfg.GetOutputDir()
//	profilesDir := cfg.GetProfilesDir()
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
