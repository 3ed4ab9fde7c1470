package guide

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/candorlabs/vox/pkg/core"
)

// Dir serves call guides from a directory of YAML files, one guide per
// file named <id>.yaml. Guides are cached after the first load; an
// interview in flight never sees a guide change under it.
type Dir struct {
	root string

	mu    sync.Mutex
	cache map[string]*CallGuide
}

// NewDir creates a guide source rooted at the given directory.
func NewDir(root string) *Dir {
	return &Dir{root: root, cache: make(map[string]*CallGuide)}
}

// Guide loads the guide with the given id, reading <root>/<id>.yaml on
// first use. The file's declared id must match its name.
func (d *Dir) Guide(_ context.Context, id string) (*CallGuide, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if g, ok := d.cache[id]; ok {
		return g, nil
	}

	// The id becomes a path component; reject anything that could
	// escape the root.
	if id == "" || strings.ContainsAny(id, `/\`) || id != filepath.Base(id) {
		return nil, &core.Error{Type: core.ErrNotFound, Message: "unknown guide: " + id}
	}

	g, err := d.load(id)
	if err != nil {
		return nil, err
	}
	d.cache[id] = g
	return g, nil
}

func (d *Dir) load(id string) (*CallGuide, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		g, err := LoadFile(filepath.Join(d.root, id+ext))
		if err == nil {
			if g.ID != id {
				return nil, core.NewInvalidGuide("guide file " + id + ext + " declares id " + g.ID)
			}
			return g, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, &core.Error{Type: core.ErrNotFound, Message: "unknown guide: " + id}
}

// List returns the ids of every guide file under the root, sorted.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ext))
	}
	sort.Strings(ids)
	return ids, nil
}
