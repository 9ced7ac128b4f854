// Package migrations owns the schema of the metadata ledger. Silver tables
// are not migrated; they are created on first load.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
)

//go:embed *.sql
var embedded embed.FS

// Migration filename: 001_name.up.sql or 001_name.down.sql
var filenamePattern = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// FS returns the embedded migration files.
func FS() fs.FS { return embedded }

// Validate checks that every migration file is well named, that every
// version has both directions, and that versions have no gaps.
func Validate(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("no migrations found")
	}

	dirs := make(map[int]map[string]bool)
	for _, name := range names {
		m := filenamePattern.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q", name)
		}
		seq, _ := strconv.Atoi(m[1])
		if dirs[seq] == nil {
			dirs[seq] = make(map[string]bool)
		}
		dirs[seq][m[3]] = true
	}

	seqs := make([]int, 0, len(dirs))
	for seq := range dirs {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)

	for i, seq := range seqs {
		if seq != i+1 {
			return fmt.Errorf("migration sequence gap: expected %03d, found %03d", i+1, seq)
		}
		if !dirs[seq]["up"] || !dirs[seq]["down"] {
			return fmt.Errorf("migration %03d is missing its up or down file", seq)
		}
	}
	return nil
}
