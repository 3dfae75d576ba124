package output

import (
	"encoding/json"
	"io"

	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
)

// JSONReportName is the file the "json" reporter writes in the reports directory.
const JSONReportName = "bastet.json"

// JSON writes the complete results as JSON.
type JSON struct {
	opts Options
}

// NewJSON creates the "json" reporter.
func NewJSON(opts Options) *JSON {
	return &JSON{opts: opts.withDefaults()}
}

func (j *JSON) Create(tools.Tool) Instance { return nopInstance{} }

func (j *JSON) Summarise(results *types.Results) error {
	f, err := createReport(j.opts.ReportsDir, JSONReportName)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteJSON(f, results)
}

func (j *JSON) Close() error { return nil }

// WriteJSON encodes results as indented JSON.
func WriteJSON(w io.Writer, results *types.Results) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// nopInstance is used by reporters that only act on the final results.
type nopInstance struct{}

func (nopInstance) Start() Streams { return Streams{} }
func (nopInstance) End() {}
