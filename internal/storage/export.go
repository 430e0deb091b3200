package storage

import (
	"encoding/json"
	"io"
	"os"
)

// ExportJSON writes rec as indented JSON.
func ExportJSON(w io.Writer, rec *Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func ExportJSONFile(path string, rec *Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, rec)
}
