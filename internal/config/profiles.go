package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Profile bundles the tunable analysis settings under a reusable name. The
// JSON field names are the on-disk profile format; files written by earlier
// releases of the tool load unchanged.
type Profile struct {
	Name          string              `json:"configName"`
	Description   string              `json:"description"`
	Version       string              `json:"version"`
	Depth         DepthConfig         `json:"depthAnalysis"`
	Position      PositionConfig      `json:"positionAnalysis"`
	Visualization VisualizationConfig `json:"visualization"`
}

// ProfileInfo describes a stored profile file without fully loading it
type ProfileInfo struct {
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StandardProfile returns the default analysis profile
func StandardProfile() Profile {
	return Profile{
		Name:        "Standard Cable Analysis",
		Description: "Default configuration for analyzing standard cables",
		Version:     "1.0",
		Depth: DepthConfig{
			TargetDepth:    1.5,
			MaxDepth:       3.0,
			MinDepth:       0.0,
			SpikeThreshold: 0.5,
			WindowSize:     5,
			StdThreshold:   3.0,
		},
		Position: PositionConfig{
			KPJumpThreshold:     0.1,
			KPReversalThreshold: 0.0001,
			DCCThreshold:        5.0,
			MinSegmentLength:    5,
			KPDistanceRatio:     0.01,
			CoordinateSystem:    "WGS84",
		},
		Visualization: VisualizationConfig{
			UseSegmented:     true,
			IncludeAnomalies: true,
		},
	}
}

// HighSensitivityProfile returns a profile with lowered detection thresholds
func HighSensitivityProfile() Profile {
	p := StandardProfile()
	p.Name = "High Sensitivity Analysis"
	p.Description = "Configuration with lower thresholds for more sensitive analysis"
	p.Depth.SpikeThreshold = 0.3
	p.Depth.StdThreshold = 2.0
	p.Position.KPJumpThreshold = 0.05
	p.Position.DCCThreshold = 3.0
	return p
}

// DeepWaterProfile returns a profile tuned for deep water installations
func DeepWaterProfile() Profile {
	p := StandardProfile()
	p.Name = "Deep Water Analysis"
	p.Description = "Configuration for analyzing deep water cable installations"
	p.Depth.TargetDepth = 2.0
	p.Depth.MaxDepth = 5.0
	return p
}

// BuiltinProfiles returns the profiles shipped with the tool
func BuiltinProfiles() []Profile {
	return []Profile{
		StandardProfile(),
		HighSensitivityProfile(),
		DeepWaterProfile(),
	}
}

// ApplyProfile overrides the analysis sections with the profile's settings
func (c *Config) ApplyProfile(p Profile) {
	c.Analysis.Depth = p.Depth
	c.Analysis.Position = p.Position
	c.Visualization = p.Visualization
}

// SaveProfile writes p to dir as pretty-printed JSON, deriving the file name
// from the profile name. It returns the path of the written file.
func SaveProfile(dir string, p Profile) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create profile directory: %w", err)
	}

	path := filepath.Join(dir, profileFileName(p.Name))
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode profile: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write profile: %w", err)
	}

	return path, nil
}

// LoadProfile reads a profile file. Fields that older profile files omit are
// backfilled from the standard profile so downstream validation still passes.
func LoadProfile(path string) (*Profile, error) {
	if filepath.Ext(path) == "" {
		path += ".json"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", filepath.Base(path), err)
	}

	p.normalize()
	return &p, nil
}

// ListProfiles returns information about every profile file in dir. Files
// that cannot be parsed are still listed so a UI can surface them.
func ListProfiles(dir string) ([]ProfileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	var infos []ProfileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		info := ProfileInfo{
			Filename: entry.Name(),
			Path:     path,
			Name:     strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
		}

		if p, err := LoadProfile(path); err != nil {
			info.Description = "Unable to read configuration details"
		} else {
			if p.Name != "" {
				info.Name = p.Name
			}
			info.Description = p.Description
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// WriteBuiltinProfiles creates the built-in profile files in dir when absent
func WriteBuiltinProfiles(dir string) error {
	for _, p := range BuiltinProfiles() {
		path := filepath.Join(dir, profileFileName(p.Name))
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if _, err := SaveProfile(dir, p); err != nil {
			return err
		}
	}
	return nil
}

// normalize backfills numeric and string fields that an older or hand-edited
// profile file left unset. Booleans keep whatever the file said.
func (p *Profile) normalize() {
	std := StandardProfile()

	if p.Version == "" {
		p.Version = std.Version
	}

	if p.Depth.TargetDepth == 0 {
		p.Depth.TargetDepth = std.Depth.TargetDepth
	}
	if p.Depth.MaxDepth == 0 {
		p.Depth.MaxDepth = std.Depth.MaxDepth
	}
	if p.Depth.SpikeThreshold == 0 {
		p.Depth.SpikeThreshold = std.Depth.SpikeThreshold
	}
	if p.Depth.WindowSize == 0 {
		p.Depth.WindowSize = std.Depth.WindowSize
	}
	if p.Depth.StdThreshold == 0 {
		p.Depth.StdThreshold = std.Depth.StdThreshold
	}

	if p.Position.KPJumpThreshold == 0 {
		p.Position.KPJumpThreshold = std.Position.KPJumpThreshold
	}
	if p.Position.KPReversalThreshold == 0 {
		p.Position.KPReversalThreshold = std.Position.KPReversalThreshold
	}
	if p.Position.DCCThreshold == 0 {
		p.Position.DCCThreshold = std.Position.DCCThreshold
	}
	if p.Position.MinSegmentLength == 0 {
		p.Position.MinSegmentLength = std.Position.MinSegmentLength
	}
	if p.Position.KPDistanceRatio == 0 {
		p.Position.KPDistanceRatio = std.Position.KPDistanceRatio
	}
	if p.Position.CoordinateSystem == "" {
		p.Position.CoordinateSystem = std.Position.CoordinateSystem
	}
}

// profileFileName derives a safe file name from a profile name
func profileFileName(name string) string {
	safe := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)

	if safe == "" {
		safe = "profile"
	}

	return safe + ".json"
}
