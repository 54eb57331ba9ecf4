package annotation

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Result is the outcome of pushing one row.
type Result struct {
	Row        Row
	StatusCode int
	Message    string
	// ID is the annotation id assigned or updated by the remote system, if known.
	ID        string
	Succeeded bool
}

// WriteResults writes the input columns plus status_code, message and id. The
// returned id replaces the input id column so the file can be pushed again as updates.
func WriteResults(path string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append(append([]string{}, Columns...), "status_code", "message")
	if err := w.Write(header); err != nil {
		return err
	}
	for _, res := range results {
		values := res.Row.values()
		if res.ID != "" {
			values[0] = res.ID
		}
		values = append(values, strconv.Itoa(res.StatusCode), res.Message)
		if err := w.Write(values); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
