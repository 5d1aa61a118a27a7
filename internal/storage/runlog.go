package storage

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/san-kum/trisim/internal/physics"
	"github.com/san-kum/trisim/internal/settings"
	"github.com/san-kum/trisim/internal/sim"
)

// RunLogger records every published frame of a run. Write errors are kept
// and returned by Close, since observers cannot fail a tick.
type RunLogger interface {
	sim.Observer
	Close() error
}

// Columns is the layout shared by every run log: time followed by
// position, velocity and acceleration of each body.
func Columns() []string {
	cols := []string{"time"}
	for i := 1; i <= physics.NumBodies; i++ {
		for _, c := range []string{"x", "y", "vx", "vy", "ax", "ay"} {
			cols = append(cols, c+strconv.Itoa(i))
		}
	}
	return cols
}

func isSQLite(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite":
		return true
	}
	return false
}

// OpenRunLog creates the log at path. A .db or .sqlite suffix selects a
// SQLite database; anything else is written as CSV with values rendered in
// format.
func OpenRunLog(path string, format settings.NumberFormat) (RunLogger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	if isSQLite(path) {
		return openSQLiteLog(path)
	}
	return openCSVLog(path, format)
}

func frameRow(f sim.Frame) []float64 {
	row := make([]float64, 0, 1+physics.NumBodies*6)
	row = append(row, f.Time)
	for _, b := range f.Bodies {
		row = append(row,
			b.Position.X, b.Position.Y,
			b.Velocity.X, b.Velocity.Y,
			b.Acceleration.X, b.Acceleration.Y)
	}
	return row
}

type CSVLog struct {
	mu     sync.Mutex
	file   *os.File
	w      *csv.Writer
	format settings.NumberFormat
	err    error
}

func openCSVLog(path string, format settings.NumberFormat) (*CSVLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	l := &CSVLog{file: f, w: csv.NewWriter(f), format: format}
	if err := l.w.Write(Columns()); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *CSVLog) OnTick(f sim.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return
	}

	values := frameRow(f)
	record := make([]string, len(values))
	record[0] = strconv.FormatFloat(values[0], 'f', 6, 64)
	for i, v := range values[1:] {
		record[i+1] = l.format.Format(v)
	}
	l.err = l.w.Write(record)
}

func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.w.Flush()
	if l.err == nil {
		l.err = l.w.Error()
	}
	if err := l.file.Close(); err != nil && l.err == nil {
		l.err = err
	}
	return l.err
}

// RunData is a run log read back into memory.
type RunData struct {
	Columns []string
	Rows    [][]float64
}

// Column returns the named series, or nil if the log has no such column.
func (d *RunData) Column(name string) []float64 {
	idx := -1
	for i, c := range d.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row[idx]
	}
	return out
}

// Separation returns the distance between bodies i and j (ids) per row.
func (d *RunData) Separation(i, j int) []float64 {
	xi, yi := d.Column(fmt.Sprintf("x%d", i)), d.Column(fmt.Sprintf("y%d", i))
	xj, yj := d.Column(fmt.Sprintf("x%d", j)), d.Column(fmt.Sprintf("y%d", j))
	if xi == nil || xj == nil {
		return nil
	}
	out := make([]float64, len(xi))
	for k := range out {
		out[k] = math.Hypot(xi[k]-xj[k], yi[k]-yj[k])
	}
	return out
}

// ReadRunLog loads a log written by OpenRunLog.
func ReadRunLog(path string) (*RunData, error) {
	if isSQLite(path) {
		return readSQLiteLog(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty run log", path)
	}

	data := &RunData{Columns: records[0], Rows: make([][]float64, 0, len(records)-1)}
	for line, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %s: %w", path, line+2, data.Columns[j], err)
			}
			row[j] = v
		}
		data.Rows = append(data.Rows, row)
	}
	return data, nil
}
