package migrate

import (
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Suffix marks a directory entry as a unit file.
const Suffix = ".sql"

// Discover lists dir in fsys, keeps the regular files ending in Suffix, sorts
// them by file name and loads each into a Unit named after the file without
// its suffix. The first file that fails to load aborts discovery.
func Discover(fsys fs.FS, dir string) ([]Unit, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), Suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	units := make([]Unit, 0, len(names))
	for _, name := range names {
		p := path.Join(dir, name)
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, &LoadError{Path: p, Err: err}
		}
		u, err := ParseSQL(strings.TrimSuffix(name, Suffix), src)
		if err != nil {
			return nil, &LoadError{Path: p, Err: err}
		}
		units = append(units, u)
	}
	return units, nil
}
