package workload

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// WorkerReport is the outcome of one reader.
type WorkerReport struct {
	ID       int    `json:"id" yaml:"id"`
	Queries  int    `json:"queries" yaml:"queries"`
	RowsRead int    `json:"rowsRead" yaml:"rowsRead"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report summarizes a run.
type Report struct {
	Mode          Mode           `json:"mode" yaml:"mode"`
	ThreadingMode string         `json:"threadingMode" yaml:"threadingMode"`
	Rows          int            `json:"rows" yaml:"rows"`
	Elapsed       time.Duration  `json:"-" yaml:"-"`
	ElapsedMillis int64          `json:"elapsedMilliseconds" yaml:"elapsedMilliseconds"`
	TotalQueries  int            `json:"totalQueries" yaml:"totalQueries"`
	FailedWorkers int            `json:"failedWorkers" yaml:"failedWorkers"`
	Workers       []WorkerReport `json:"workers" yaml:"workers"`
}

func (r *Report) summarize() {
	r.ElapsedMillis = r.Elapsed.Milliseconds()
	r.TotalQueries, r.FailedWorkers = 0, 0
	for _, w := range r.Workers {
		r.TotalQueries += w.Queries
		if w.Error != "" {
			r.FailedWorkers++
		}
	}
}

// Write renders the report in the given format.
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "", FormatText:
		_, err := fmt.Fprintf(w, "The reading threads took a total of %d milliseconds. Threading mode: %s\n", r.ElapsedMillis, r.ThreadingMode)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%d workers issued %d queries over %d rows, %d failed\n", len(r.Workers), r.TotalQueries, r.Rows, r.FailedWorkers)
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		out, err := yaml.Marshal(r)
		if err != nil {
			return errors.Wrap(err, "could not marshal report")
		}
		_, err = w.Write(out)
		return err
	}
	return errors.Errorf("unknown output format %q, expected %q, %q or %q", format, FormatText, FormatJSON, FormatYAML)
}
