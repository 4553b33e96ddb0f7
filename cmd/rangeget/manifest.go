package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ligustah/rangeget/pkg/download"
)

type manifest struct {
	Downloads []download.Request `yaml:"downloads"`
}

// loadManifest reads the list of downloads from a YAML file.
func loadManifest(path string) ([]download.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Downloads) == 0 {
		return nil, errors.New("manifest lists no downloads")
	}

	dests := make(map[string]int, len(m.Downloads))
	for i, req := range m.Downloads {
		if req.FileHandleID == "" {
			return nil, fmt.Errorf("manifest entry %d: file_handle_id is required", i)
		}
		if req.Destination == "" {
			return nil, fmt.Errorf("manifest entry %d: destination is required", i)
		}
		if j, ok := dests[req.Destination]; ok {
			return nil, fmt.Errorf("manifest entries %d and %d share destination %s", j, i, req.Destination)
		}
		dests[req.Destination] = i
	}
	return m.Downloads, nil
}
