// Package data imports bar history into a market.MemoryQuotes store.
//
// Supported inputs: plain CSV files, xz-compressed CSV (.csv.xz), and zip
// archives of CSV files. The CSV layout is date,open,high,low,close,volume
// with an optional header row; dates are YYYY-MM-DD.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/xyproto/unzip"

	"github.com/rustyeddy/accountsim/market"
)

// Load reads bar history from path into q. It returns the number of bars
// imported.
func Load(q *market.MemoryQuotes, sec market.Security, ktype market.KType, path string) (int, error) {
	switch {
	case strings.HasSuffix(path, ".zip"):
		return loadZip(q, sec, ktype, path)
	case strings.HasSuffix(path, ".xz"):
		return loadXZ(q, sec, ktype, path)
	default:
		return loadCSV(q, sec, ktype, path)
	}
}

func loadCSV(q *market.MemoryQuotes, sec market.Security, ktype market.KType, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()
	return readBars(q, sec, ktype, f)
}

func loadXZ(q *market.MemoryQuotes, sec market.Security, ktype market.KType, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()

	r, err := xz.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("xz reader %s: %w", path, err)
	}
	return readBars(q, sec, ktype, r)
}

func loadZip(q *market.MemoryQuotes, sec market.Security, ktype market.KType, path string) (int, error) {
	dir, err := os.MkdirTemp("", "accountsim-bars-")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(dir)

	if err := unzip.Extract(path, dir); err != nil {
		return 0, fmt.Errorf("extract %s: %w", path, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range matches {
		n, err := loadCSV(q, sec, ktype, m)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func readBars(q *market.MemoryQuotes, sec market.Security, ktype market.KType, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var bars []market.Bar
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read bars: %w", err)
		}
		line++
		if len(rec) < 5 {
			return 0, fmt.Errorf("read bars: line %d: want at least 5 fields, got %d", line, len(rec))
		}
		if line == 1 && !isNumeric(rec[1]) {
			continue // header
		}

		date, err := time.Parse(time.DateOnly, strings.TrimSpace(rec[0]))
		if err != nil {
			return 0, fmt.Errorf("read bars: line %d: %w", line, err)
		}
		vals := make([]float64, 0, 5)
		for _, s := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return 0, fmt.Errorf("read bars: line %d: %w", line, err)
			}
			vals = append(vals, v)
		}
		b := market.Bar{Date: date, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]}
		if len(vals) > 4 {
			b.Volume = vals[4]
		}
		bars = append(bars, b)
	}

	q.AddBars(sec, ktype, bars...)
	return len(bars), nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
