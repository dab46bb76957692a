// Package configfile decodes the YAML/JSON registry files rawfetch reads.
package configfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decode reads path into out. The extension picks the decoder and its error is
// returned as-is; files without a known extension are tried as YAML, then JSON.
// kind names the file in errors ("targets", "publishers").
func Decode(path, kind string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%s file path is empty", kind)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s file: %w", kind, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode yaml %s: %w", kind, err)
		}
	case ".json":
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode json %s: %w", kind, err)
		}
	default:
		yamlErr := yaml.Unmarshal(raw, out)
		if yamlErr == nil {
			return nil
		}
		if jsonErr := json.Unmarshal(raw, out); jsonErr != nil {
			return fmt.Errorf("%s file format not recognized (expected YAML or JSON): %w", kind, errors.Join(yamlErr, jsonErr))
		}
	}
	return nil
}
