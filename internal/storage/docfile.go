package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lodret/concord/internal/common"
	"github.com/lodret/concord/internal/model"
)

// DealFile is the on-disk YAML layout for a deal's document set.
type DealFile struct {
	Stage     model.Stage       `yaml:"stage"`
	Documents model.DocumentSet `yaml:"documents"`
}

// LoadDealFile reads and parses a deal file from disk.
func LoadDealFile(path string) (*DealFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the user's own CLI invocation
	if err != nil {
		return nil, fmt.Errorf("failed to read deal file %s: %w", path, err)
	}

	var deal DealFile
	if err := yaml.Unmarshal(data, &deal); err != nil {
		return nil, fmt.Errorf("failed to parse deal file %s: %w", path, err)
	}

	if deal.Documents == nil {
		deal.Documents = make(model.DocumentSet)
	}
	for key := range deal.Documents {
		if !validDocKey(key) {
			return nil, fmt.Errorf("deal file %s: %w: %q", path, common.ErrUnknownDocument, key)
		}
	}
	if deal.Stage == "" {
		deal.Stage = model.StageContract
	}

	return &deal, nil
}

// SaveDealFile writes the deal back to disk, preserving the YAML layout.
func SaveDealFile(path string, deal *DealFile) error {
	data, err := yaml.Marshal(deal)
	if err != nil {
		return fmt.Errorf("failed to marshal deal file: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write deal file %s: %w", path, err)
	}

	return nil
}

func validDocKey(key model.DocKey) bool {
	for _, known := range model.AllDocKeys() {
		if key == known {
			return true
		}
	}
	return false
}
