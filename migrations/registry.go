// Package migrations registers the gateway schema with a go-persistence-bun
// client. Every dialect ships the same numbered up/down pairs.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"strconv"
	"strings"

	gateways "github.com/goliatone/go-gateways"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	rootPath    = "data/sql/migrations"
	sourceLabel = "go-gateways"
)

// Version is one numbered migration, present as both an up and a down file.
type Version struct {
	Number int
	Name   string
}

func (v Version) String() string {
	return fmt.Sprintf("%05d_%s", v.Number, v.Name)
}

type FilesystemSpec struct {
	Dialect  string
	Path     string
	FS       fs.FS
	Versions []Version
}

type Registration struct {
	SourceLabel string
	Dialects    []string
	Filesystems []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithValidationTargets limits registration to the given dialects.
func WithValidationTargets(dialects ...string) Option {
	return func(r *Registration) {
		if next := normalizeDialects(dialects); len(next) > 0 {
			r.Dialects = next
		}
	}
}

// Filesystems resolves the postgres tree and its sqlite subtree from root, the
// embedded schema when none is given, and checks both carry the same versions.
func Filesystems(root ...fs.FS) ([]FilesystemSpec, error) {
	source := gateways.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		source = root[0]
	}
	base, err := fs.Sub(source, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite tree: %w", err)
	}

	specs := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/" + DialectSQLite, FS: sqliteFS},
	}
	for i := range specs {
		versions, err := Manifest(specs[i].FS)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s: %w", specs[i].Dialect, err)
		}
		specs[i].Versions = versions
	}
	if err := sameVersions(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// Manifest lists the versions in fsys. Every version needs both an up and a
// down file, and version numbers must be unique.
func Manifest(fsys fs.FS) ([]Version, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	type pair struct {
		version  Version
		up, down bool
	}
	found := map[int]*pair{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, direction, ok := parseFilename(entry.Name())
		if !ok {
			continue
		}
		current, exists := found[version.Number]
		if !exists {
			current = &pair{version: version}
			found[version.Number] = current
		} else if current.version.Name != version.Name {
			return nil, fmt.Errorf("version %05d is used by %q and %q", version.Number, current.version.Name, version.Name)
		}
		switch direction {
		case "up":
			current.up = true
		case "down":
			current.down = true
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("no migrations found")
	}

	out := make([]Version, 0, len(found))
	for _, p := range found {
		if !p.up || !p.down {
			return nil, fmt.Errorf("migration %s needs both up and down files", p.version)
		}
		out = append(out, p.version)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// Register hands the filesystem of each targeted dialect to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel: sourceLabel,
		Dialects:    []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	for _, spec := range filesystems {
		if !slices.Contains(reg.Dialects, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s: %w", spec.Dialect, err)
		}
		reg.Filesystems = append(reg.Filesystems, spec)
	}
	if len(reg.Filesystems) == 0 {
		return reg, fmt.Errorf("migrations: no filesystem for dialects %v", reg.Dialects)
	}
	return reg, nil
}

// parseFilename splits "00003_gateways_notification_deliveries.up.sql".
func parseFilename(name string) (Version, string, bool) {
	stem, ok := strings.CutSuffix(name, ".sql")
	if !ok {
		return Version{}, "", false
	}
	dot := strings.LastIndex(stem, ".")
	if dot < 0 {
		return Version{}, "", false
	}
	direction := stem[dot+1:]
	if direction != "up" && direction != "down" {
		return Version{}, "", false
	}
	number, label, ok := strings.Cut(stem[:dot], "_")
	if !ok || label == "" {
		return Version{}, "", false
	}
	n, err := strconv.Atoi(number)
	if err != nil || n <= 0 {
		return Version{}, "", false
	}
	return Version{Number: n, Name: label}, direction, true
}

func sameVersions(specs []FilesystemSpec) error {
	if len(specs) < 2 {
		return nil
	}
	want := specs[0]
	for _, spec := range specs[1:] {
		if !slices.Equal(spec.Versions, want.Versions) {
			return fmt.Errorf("migrations: %s versions %v differ from %s versions %v",
				spec.Dialect, spec.Versions, want.Dialect, want.Versions)
		}
	}
	return nil
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" && !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	return out
}
