package segmentation

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Color is an RGB triple with components in [0, 1].
type Color [3]float64

// Preset describes display properties applied when a region is created or
// loaded.
type Preset struct {
	Name    string  `yaml:"name"`
	Color   Color   `yaml:"color"`
	Opacity float64 `yaml:"opacity"`
}

type presetFile struct {
	Regions []Preset `yaml:"regions"`
}

// Presets resolves display presets by region name, case-insensitively.
type Presets struct {
	byName map[string]Preset
}

// DefaultPresets returns the built-in presets covering the required labels.
func DefaultPresets() *Presets {
	p := &Presets{byName: make(map[string]Preset, 2)}
	p.put(Preset{Name: ProstateLabel, Color: Color{1.0, 0.0, 0.0}, Opacity: 1.0})
	p.put(Preset{Name: FasciaLabel, Color: Color{0.2, 0.6, 0.8}, Opacity: 1.0})
	return p
}

// LoadPresets reads a YAML preset file and merges it over the defaults. An
// empty path returns the defaults unchanged; a missing file is an error
// because the path came from explicit configuration.
func LoadPresets(path string) (*Presets, error) {
	presets := DefaultPresets()
	if strings.TrimSpace(path) == "" {
		return presets, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("presets: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("presets: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("presets: read %s: %w", path, err)
	}
	parsed, err := ParsePresetsYAML(data)
	if err != nil {
		return nil, fmt.Errorf("presets: %s: %w", path, err)
	}
	for _, preset := range parsed {
		presets.put(preset)
	}
	return presets, nil
}

// ParsePresetsYAML decodes and validates a preset payload.
func ParsePresetsYAML(data []byte) ([]Preset, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("preset payload is empty")
	}
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	out := make([]Preset, 0, len(file.Regions))
	for i, preset := range file.Regions {
		preset.Name = strings.TrimSpace(preset.Name)
		if preset.Name == "" {
			return nil, fmt.Errorf("regions[%d]: name must be set", i)
		}
		for _, component := range preset.Color {
			if component < 0 || component > 1 {
				return nil, fmt.Errorf("regions[%d] (%s): color components must be within [0, 1]", i, preset.Name)
			}
		}
		if preset.Opacity < 0 || preset.Opacity > 1 {
			return nil, fmt.Errorf("regions[%d] (%s): opacity must be within [0, 1]", i, preset.Name)
		}
		if preset.Opacity == 0 {
			preset.Opacity = 1.0
		}
		out = append(out, preset)
	}
	return out, nil
}

// Lookup resolves a preset by region name, case-insensitively.
func (p *Presets) Lookup(name string) (Preset, bool) {
	preset, ok := p.byName[strings.ToLower(name)]
	return preset, ok
}

func (p *Presets) put(preset Preset) {
	p.byName[strings.ToLower(preset.Name)] = preset
}
