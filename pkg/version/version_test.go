package version

import (
	"testing"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/sqlguard/pkg/sqlite"
)

func TestString(t *testing.T) {
	Version, GitCommit = "v0.3.0", "abc123"
	defer func() { Version, GitCommit = "", "" }()

	out := String()
	require.Contains(t, out, "sqlguard version: v0.3.0\n")
	require.Contains(t, out, "Git commit: abc123\n")
	require.Contains(t, out, "SQLite: "+sqlite.EngineVersion().String())
}

func TestEngineVersionSupportsWAL(t *testing.T) {
	v := sqlite.EngineVersion()
	require.True(t, v.GTE(semver.MustParse("3.7.0")), "linked engine %s", v)
}
