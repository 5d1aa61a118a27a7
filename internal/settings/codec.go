package settings

import (
	"fmt"
	"strconv"

	"github.com/san-kum/trisim/internal/dynamo"
	"github.com/san-kum/trisim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	headerFields   = 7
	particleFields = 8
	// RecordLen is the number of fields in an encoded record.
	RecordLen = headerFields + physics.NumBodies*particleFields
)

const (
	boolTrue  = "True"
	boolFalse = "False"
)

// Encode flattens s into its positional record:
//
//	isInfinite, hasTrails, showsCenterOfGravity, skip, speed,
//	numberFormat, outputFileName
//
// followed, for ids 1, 2, 3, by x, y, vx, vy, mass, id, color, label.
func Encode(s Settings) []string {
	fields := make([]string, 0, RecordLen)
	fields = append(fields,
		encodeBool(s.Infinite),
		encodeBool(s.Trails),
		encodeBool(s.CenterOfGravity),
		encodeFloat(s.SkipTo),
		encodeFloat(s.Speed),
		s.Format.String(),
		s.Output,
	)

	for _, b := range s.Bodies {
		fields = append(fields,
			encodeFloat(b.Position.X),
			encodeFloat(b.Position.Y),
			encodeFloat(b.Velocity.X),
			encodeFloat(b.Velocity.Y),
			encodeFloat(b.Mass),
			strconv.Itoa(b.ID),
			b.Color,
			b.Label,
		)
	}
	return fields
}

// Decode parses a record produced by Encode and validates the result.
// On error the zero Settings is returned.
func Decode(fields []string) (Settings, error) {
	if len(fields) != RecordLen {
		return Settings{}, fmt.Errorf("%w: %d fields, want %d", dynamo.ErrDecode, len(fields), RecordLen)
	}

	d := decoder{fields: fields}
	var s Settings
	s.Infinite = d.bool(0, "isInfinite")
	s.Trails = d.bool(1, "hasTrails")
	s.CenterOfGravity = d.bool(2, "showsCenterOfGravity")
	s.SkipTo = d.float(3, "skip")
	s.Speed = d.float(4, "speed")
	s.Format = d.format(5)
	s.Output = fields[6]

	for i := range s.Bodies {
		base := headerFields + i*particleFields
		s.Bodies[i] = physics.Body{
			Position: r2.Vec{X: d.float(base, "x"), Y: d.float(base+1, "y")},
			Velocity: r2.Vec{X: d.float(base+2, "vx"), Y: d.float(base+3, "vy")},
			Mass:     d.float(base+4, "mass"),
			ID:       d.int(base+5, "id"),
			Color:    fields[base+6],
			Label:    fields[base+7],
		}
	}

	if d.err != nil {
		return Settings{}, d.err
	}
	if err := Validate(s); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", dynamo.ErrDecode, err)
	}
	return s, nil
}

// decoder keeps the first parse error so Decode reads straight through.
type decoder struct {
	fields []string
	err    error
}

func (d *decoder) fail(i int, name string, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: field %d (%s): %v", dynamo.ErrDecode, i, name, err)
	}
}

func (d *decoder) bool(i int, name string) bool {
	switch d.fields[i] {
	case boolTrue:
		return true
	case boolFalse:
		return false
	}
	d.fail(i, name, fmt.Errorf("%q is not %s or %s", d.fields[i], boolTrue, boolFalse))
	return false
}

func (d *decoder) float(i int, name string) float64 {
	v, err := strconv.ParseFloat(d.fields[i], 64)
	if err != nil {
		d.fail(i, name, err)
	}
	return v
}

func (d *decoder) int(i int, name string) int {
	v, err := strconv.Atoi(d.fields[i])
	if err != nil {
		d.fail(i, name, err)
	}
	return v
}

func (d *decoder) format(i int) NumberFormat {
	f, err := ParseNumberFormat(d.fields[i])
	if err != nil {
		d.fail(i, "numberFormat", err)
	}
	return f
}

func encodeBool(b bool) string {
	if b {
		return boolTrue
	}
	return boolFalse
}

func encodeFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
