// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package catalog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crumb/internal/validation"
)

// ErrSchema is returned when catalog input lacks a required column or field.
var ErrSchema = errors.New("catalog schema violation")

// ErrUnsupportedFormat is returned for files that are neither CSV nor JSON.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// RequiredColumns are the CSV header columns every catalog must provide.
var RequiredColumns = []string{"category", "name", "price", "sweetness", "tags"}

// LoadFile reads and validates the catalog at path. The format is chosen by
// extension (.csv or .json). Any invalid row fails the whole load.
func LoadFile(path string) (*View, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var items []Item
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		items, err = ParseCSV(bytes.NewReader(data))
	case ".json":
		items, err = ParseJSON(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	return NewView(items, path, Fingerprint(data)), nil
}

// Fingerprint returns a short content hash used as the catalog version.
func Fingerprint(data []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return strconv.FormatUint(h.Sum64(), 16)
}

// ParseCSV reads a catalog from CSV with a header row containing at least
// RequiredColumns in any order. The tags cell holds a comma separated list.
func ParseCSV(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrSchema)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrSchema, strings.Join(missing, ", "))
	}

	var items []Item
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		item, err := parseRecord(record, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func parseRecord(record []string, index map[string]int) (Item, error) {
	field := func(name string) string {
		return strings.TrimSpace(record[index[name]])
	}

	for _, col := range []string{"category", "name", "price", "sweetness"} {
		if field(col) == "" {
			return Item{}, fmt.Errorf("%w: %s is empty", ErrSchema, col)
		}
	}

	price, err := strconv.ParseInt(strings.ReplaceAll(field("price"), ",", ""), 10, 64)
	if err != nil {
		return Item{}, fmt.Errorf("%w: price %q is not an integer", ErrSchema, field("price"))
	}
	sweetness, err := strconv.Atoi(field("sweetness"))
	if err != nil {
		return Item{}, fmt.Errorf("%w: sweetness %q is not an integer", ErrSchema, field("sweetness"))
	}

	item := Item{
		Category:  field("category"),
		Name:      field("name"),
		Price:     price,
		Sweetness: sweetness,
		Tags:      SplitTags(field("tags")),
	}
	if verr := validation.ValidateStruct(&item); verr != nil {
		return Item{}, fmt.Errorf("%w: %s", ErrSchema, verr.Error())
	}
	return item, nil
}

// ParseJSON reads a catalog from a JSON array of items.
func ParseJSON(r io.Reader) ([]Item, error) {
	var raw []struct {
		Category  string   `json:"category"`
		Name      string   `json:"name"`
		Price     *int64   `json:"price"`
		Sweetness *int     `json:"sweetness"`
		Tags      []string `json:"tags"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	items := make([]Item, 0, len(raw))
	for i, row := range raw {
		if row.Price == nil || row.Sweetness == nil {
			return nil, fmt.Errorf("item %d: %w: price and sweetness are required", i, ErrSchema)
		}
		item := Item{
			Category:  strings.TrimSpace(row.Category),
			Name:      strings.TrimSpace(row.Name),
			Price:     *row.Price,
			Sweetness: *row.Sweetness,
			Tags:      normalizeTags(row.Tags),
		}
		if verr := validation.ValidateStruct(&item); verr != nil {
			return nil, fmt.Errorf("item %d: %w: %s", i, ErrSchema, verr.Error())
		}
		items = append(items, item)
	}
	return items, nil
}

// SplitTags splits a comma separated tag cell, dropping blanks.
func SplitTags(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	return normalizeTags(strings.Split(cell, ","))
}

func normalizeTags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
