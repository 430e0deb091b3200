package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// FileStore keeps one directory per run with metadata.json and fluxes.csv.
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) Init(context.Context) error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) runDir(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return "", notFound(id)
	}
	return filepath.Join(s.baseDir, id), nil
}

func (s *FileStore) Save(_ context.Context, rec *Record) (string, error) {
	if err := prepare(rec); err != nil {
		return "", err
	}
	runDir, err := s.runDir(rec.Meta.ID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec.Meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "fluxes.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	header := append([]string{"energy_gev"}, rec.Meta.Fluxes...)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for i, E := range rec.Energies {
		row := []string{strconv.FormatFloat(E, 'g', -1, 64)}
		for _, name := range rec.Meta.Fluxes {
			row = append(row, strconv.FormatFloat(rec.Fluxes[name][i], 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return rec.Meta.ID, nil
}

func (s *FileStore) List(context.Context) ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.loadMeta(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *FileStore) loadMeta(id string) (*RunMetadata, error) {
	runDir, err := s.runDir(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(id)
		}
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return &meta, nil
}

func (s *FileStore) Load(_ context.Context, id string) (*Record, error) {
	meta, err := s.loadMeta(id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, id, "fluxes.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("run %s: empty flux table", id)
	}

	header := records[0]
	rec := &Record{
		Meta:     *meta,
		Energies: make([]float64, 0, len(records)-1),
		Fluxes:   make(map[string][]float64, len(header)-1),
	}
	for _, row := range records[1:] {
		for j, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s: %w", id, err)
			}
			if j == 0 {
				rec.Energies = append(rec.Energies, v)
				continue
			}
			rec.Fluxes[header[j]] = append(rec.Fluxes[header[j]], v)
		}
	}
	return rec, nil
}
