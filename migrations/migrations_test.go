package migrations

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			t.Fatalf("unexpected file in migrations: %s", entry.Name())
		}
		version, direction := match[1], match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}
	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestInitialSchemaEnforcesStructuralInvariants(t *testing.T) {
	raw, err := fs.ReadFile(files, "000001_init.up.sql")
	if err != nil {
		t.Fatalf("read initial migration: %v", err)
	}
	schema := string(raw)

	for _, want := range []string{
		"PRIMARY KEY (project_id, user_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS tracks_previous_version_uidx",
		"PRIMARY KEY (comment_id, user_id, reaction_type)",
		"parent_id         BIGINT           REFERENCES comments (id) ON DELETE CASCADE",
	} {
		if !strings.Contains(schema, want) {
			t.Fatalf("expected schema to contain %q", want)
		}
	}
}
