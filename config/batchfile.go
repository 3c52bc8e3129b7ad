package config

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aep/mintdb/db"
	"sigs.k8s.io/yaml"
)

// BatchEntry is one item of a batch file.
//
//	- op: insert
//	  key: accounts/alice
//	  value: "hex:00ff"
type BatchEntry struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// ParseBytes reads s as raw text, or as hex when prefixed with "hex:".
func ParseBytes(s string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(s, "hex:"); ok {
		b, err := hex.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %w", s, err)
		}
		return b, nil
	}
	return []byte(s), nil
}

// ReadBatchFile parses a batch file. "-" reads stdin. Several YAML
// documents separated by "---" are concatenated in order.
func ReadBatchFile(file string) (db.Batch, error) {
	var data []byte
	var err error

	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %v", err)
	}
	return ParseBatch(data)
}

func ParseBatch(data []byte) (db.Batch, error) {
	var batch db.Batch
	for _, doc := range strings.Split(string(data), "---\n") {
		if strings.TrimSpace(doc) == "" {
			continue
		}

		var entries []BatchEntry
		if err := yaml.Unmarshal([]byte(doc), &entries); err != nil {
			return nil, fmt.Errorf("failed to parse batch: %v", err)
		}

		for _, e := range entries {
			key, err := ParseBytes(e.Key)
			if err != nil {
				return nil, err
			}
			value, err := ParseBytes(e.Value)
			if err != nil {
				return nil, err
			}
			item, err := db.NewBatchItem(e.Op, key, value)
			if err != nil {
				return nil, err
			}
			batch = append(batch, item)
		}
	}
	return batch, nil
}
