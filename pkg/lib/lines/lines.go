package lines

import (
	"bufio"
	"os"

	"github.com/pkg/errors"
)

// Load reads a newline delimited file fully into memory. A trailing newline
// does not produce an empty last line. Carriage returns before a newline are
// dropped.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "did not reach the end of %s", path)
	}
	return out, nil
}
