package csvsource

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"bank_reviews/internal/domain"
)

// Source reads previously scraped reviews from a CSV (header row) or a JSON
// array file. Column names are passed through untouched; the app layer maps
// aliases.
type Source struct {
	path   string
	source string
}

func New(path, source string) *Source { return &Source{path: path, source: source} }

// Fetch returns every row. banks is used only to stamp files that carry no
// bank column and cover exactly one bank.
func (s *Source) Fetch(ctx context.Context, banks []domain.Bank) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	var recs []map[string]any
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".json":
		recs, err = ReadJSON(f)
	default:
		recs, err = ReadCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	for _, r := range recs {
		if len(banks) == 1 {
			if v, _ := r["bank"].(string); v == "" {
				r["bank"] = banks[0].Name
			}
		}
		if s.source != "" {
			if v, _ := r["source"].(string); strings.TrimSpace(v) == "" {
				r["source"] = s.source
			}
		}
	}
	log.Info().Str("path", s.path).Int("records", len(recs)).Msg("loaded raw reviews from file")
	return recs, nil
}

// ReadCSV turns each data row into a map keyed by the header. Empty cells are
// left out so that a missing rating stays missing.
func ReadCSV(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var out []map[string]any
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec := make(map[string]any, len(header))
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if strings.TrimSpace(cell) == "" {
				continue
			}
			rec[header[i]] = cell
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadJSON accepts a top-level array of objects.
func ReadJSON(r io.Reader) ([]map[string]any, error) {
	var out []map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}
