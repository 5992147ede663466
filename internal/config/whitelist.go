package config

import (
	"fmt"
	"os"
	"sort"

	gotoml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/framelink/internal/origin"
)

// WhitelistSource is the human-edited origin list.
type WhitelistSource struct {
	Origins []string           `yaml:"origins"`
	Legacy  LegacySourceConfig `yaml:"legacy"`
}

type LegacySourceConfig struct {
	Candidates   []string `yaml:"candidates"`
	ReceiverPath string   `yaml:"receiver_path"`
}

// WhitelistFile is the generated artifact merged into host and embedded
// configs. Only hashes of the source origins are written.
type WhitelistFile struct {
	Whitelist []string     `toml:"whitelist"`
	Legacy    LegacyConfig `toml:"legacy,omitempty"`
}

func LoadWhitelistSource(path string) (WhitelistSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WhitelistSource{}, fmt.Errorf("whitelist source load failed (%s): %w", path, err)
	}
	return ParseWhitelistSource(data)
}

func ParseWhitelistSource(data []byte) (WhitelistSource, error) {
	var src WhitelistSource
	if err := yaml.Unmarshal(data, &src); err != nil {
		return WhitelistSource{}, fmt.Errorf("whitelist source parse failed: %w", err)
	}
	src.Origins = normalizeList(src.Origins)
	src.Legacy.Candidates = normalizeList(src.Legacy.Candidates)
	for i, o := range src.Origins {
		if _, ok := origin.Normalize(o); !ok {
			return WhitelistSource{}, fmt.Errorf("%w: origins[%d]=%q", ErrInvalidOrigin, i, o)
		}
	}
	return src, nil
}

// GenerateWhitelist hashes every source origin. Output is sorted and
// deduplicated so regenerating an unchanged source is byte-stable.
func GenerateWhitelist(src WhitelistSource) WhitelistFile {
	seen := make(map[string]struct{}, len(src.Origins))
	hashes := make([]string, 0, len(src.Origins))
	for _, o := range src.Origins {
		h := origin.Hash(o)
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return WhitelistFile{
		Whitelist: hashes,
		Legacy: LegacyConfig{
			Candidates:   src.Legacy.Candidates,
			ReceiverPath: src.Legacy.ReceiverPath,
		},
	}
}

func MarshalWhitelistFile(f WhitelistFile) ([]byte, error) {
	data, err := gotoml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("whitelist marshal failed: %w", err)
	}
	return data, nil
}

func LoadWhitelistFile(path string) (WhitelistFile, error) {
	var f WhitelistFile
	if err := loadToml(path, &f); err != nil {
		return WhitelistFile{}, err
	}
	if err := validateWhitelist(f.Whitelist, nil); err != nil {
		return WhitelistFile{}, err
	}
	return f, nil
}

// WriteWhitelistFile generates and writes the whitelist for src.
func WriteWhitelistFile(path string, src WhitelistSource, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("whitelist already exists: %s", path)
		}
	}
	data, err := MarshalWhitelistFile(GenerateWhitelist(src))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
