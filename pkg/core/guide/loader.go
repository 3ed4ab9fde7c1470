package guide

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Parse decodes a call guide from YAML and validates it. Questions
// without an explicit id are assigned one.
func Parse(r io.Reader) (*CallGuide, error) {
	var g CallGuide
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("decode guide: %w", err)
	}
	for si := range g.Sections {
		for qi := range g.Sections[si].Questions {
			q := &g.Sections[si].Questions[qi]
			if q.ID == "" {
				q.ID = uuid.NewString()
			}
			if q.MaxFollowUps == 0 {
				q.MaxFollowUps = 2
			}
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// LoadFile reads a call guide from a YAML file on disk.
func LoadFile(path string) (*CallGuide, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open guide %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}
