package persistence

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyPersistencePackagesImportSQLDrivers ensures SQL driver packages are
// confined to the persistence backends. Other packages must depend on the
// dag.PersistentStore interface instead of opening databases directly.
func TestOnlyPersistencePackagesImportSQLDrivers(t *testing.T) {
	allowedPrefix := "lineagecore/internal/infra/persistence"
	driverPrefixes := []string{
		"modernc.org/sqlite",
		"github.com/jackc/pgx",
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "lineagecore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})

	for _, pkg := range pkgs {
		if strings.HasPrefix(pkg.PkgPath, allowedPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			for _, prefix := range driverPrefixes {
				if importPath == prefix || strings.HasPrefix(importPath, prefix+"/") {
					seen[pkg.PkgPath+": "+importPath] = struct{}{}
				}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden SQL driver import: %s", v)
		}
		t.Fatalf("found %d forbidden SQL driver imports", len(violations))
	}
}
