package migration

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var sqlFileRegex = regexp.MustCompile(`^(\d+)_.+\.sql$`)

type vfile struct {
	index int
	name  string
	path  string
}

func listSQLFiles(fsys fs.FS, dir string) ([]vfile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var files []vfile
	seen := map[int]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		m := sqlFileRegex.FindStringSubmatch(name)
		if len(m) == 0 {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("migration %s: invalid version prefix: %w", name, err)
		}
		if other, ok := seen[idx]; ok {
			return nil, fmt.Errorf("%w: version %d used by %s and %s", ErrDuplicateIdentifier, idx, other, name)
		}
		seen[idx] = name
		files = append(files, vfile{index: idx, name: name, path: path.Join(dir, name)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })
	return files, nil
}

// LoadSQL turns every "<n>_<name>.sql" file directly under dir into a Unit,
// ordered by n. The identifier is the file name without ".sql"; the body runs
// as-is inside the migration transaction. Other files are ignored.
func LoadSQL(fsys fs.FS, dir string) ([]Unit, error) {
	files, err := listSQLFiles(fsys, dir)
	if err != nil {
		return nil, err
	}
	units := make([]Unit, 0, len(files))
	for _, f := range files {
		body, err := fs.ReadFile(fsys, f.path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f.name, err)
		}
		units = append(units, SQLUnit(strings.TrimSuffix(f.name, ".sql"), string(body)))
	}
	return units, nil
}

// LoadSQLDir is LoadSQL on the local directory dir.
func LoadSQLDir(dir string) ([]Unit, error) {
	return LoadSQL(os.DirFS(dir), ".")
}
