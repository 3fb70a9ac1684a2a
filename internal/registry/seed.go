package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// seedPattern matches descriptor files in a seed directory.
var seedPattern = glob.MustCompile("*.{yaml,yml}")

type seedFile struct {
	Functions []yaml.Node `yaml:"functions"`
}

// Seed upserts every descriptor found in the YAML files of dir and returns
// how many were written. A file holds a "functions" list of descriptors.
func Seed(ctx context.Context, store Store, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading seed directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !seedPattern.Match(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	count := 0
	for _, path := range files {
		descs, err := LoadFile(path)
		if err != nil {
			return count, err
		}
		for _, d := range descs {
			if err := store.Upsert(ctx, d); err != nil {
				return count, fmt.Errorf("%s: %s: %w", filepath.Base(path), d.Identifier, err)
			}
			count++
		}
		log.Debug().Str("file", path).Int("functions", len(descs)).Msg("Loaded function descriptors")
	}

	return count, nil
}

// LoadFile decodes the descriptors in a single YAML file.
func LoadFile(path string) ([]*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	out := make([]*Descriptor, 0, len(f.Functions))
	for i := range f.Functions {
		d := NewDescriptor()
		if err := f.Functions[i].Decode(d); err != nil {
			return nil, fmt.Errorf("parsing %s: function %d: %w", path, i, err)
		}
		out = append(out, d)
	}
	return out, nil
}
