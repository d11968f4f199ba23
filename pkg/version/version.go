package version

import (
	"fmt"

	"github.com/operator-framework/sqlguard/pkg/sqlite"
)

// Version indicates what version of sqlguard the binary belongs to
var Version string

// GitCommit indicates which git commit the binary was built from
var GitCommit string

// String returns a pretty string concatenation of Version, GitCommit and the
// linked engine version
func String() string {
	return fmt.Sprintf("sqlguard version: %s\n Git commit: %s\n SQLite: %s\n", Version, GitCommit, sqlite.EngineVersion())
}
