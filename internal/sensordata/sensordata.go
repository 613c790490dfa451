// Package sensordata reads the whitespace separated laser/radar log format:
//
//	L px py timestamp_us [gt_px gt_py gt_vx gt_vy [gt_yaw gt_yawrate]]
//	R rho phi rho_dot timestamp_us [gt_px gt_py gt_vx gt_vy [gt_yaw gt_yawrate]]
//
// Blank lines and lines starting with # are ignored.
package sensordata

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/sensorfusion/internal/ukf"
)

var (
	// ErrMalformedLine is returned for lines with the wrong number of
	// fields or fields that are not numbers.
	ErrMalformedLine = errors.New("malformed measurement line")
	// ErrUnknownSensor is returned for lines whose first field is not L or R.
	ErrUnknownSensor = fmt.Errorf("sensordata: %w", ukf.ErrUnknownSensor)
)

// GroundTruth is the reference state logged alongside a reading.
type GroundTruth struct {
	PX, PY float64
	VX, VY float64

	// Yaw and YawRate are only present in the longer log variant.
	HasYaw  bool
	Yaw     float64
	YawRate float64
}

// Record is one parsed log line.
type Record struct {
	Line        int // 1-based line number, 0 when parsed standalone
	Measurement ukf.Measurement
	GroundTruth *GroundTruth
}

// ParseLine parses a single log line. It returns (nil, nil) for blank and
// comment lines.
func ParseLine(line string) (*Record, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	fields := strings.Fields(line)
	var n int // measurement fields, excluding the sensor letter and timestamp
	switch fields[0] {
	case "L":
		n = 2
	case "R":
		n = 3
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSensor, fields[0])
	}

	extra := len(fields) - (n + 2)
	if extra != 0 && extra != 4 && extra != 6 {
		return nil, fmt.Errorf("%w: %s reading has %d fields", ErrMalformedLine, fields[0], len(fields))
	}

	vals := make([]float64, n)
	for i := range vals {
		v, err := parseFinite(fields[1+i])
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedLine, i+2, err)
		}
		vals[i] = v
	}
	ts, err := strconv.ParseInt(fields[1+n], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrMalformedLine, err)
	}

	rec := &Record{Measurement: ukf.Measurement{TimestampUS: ts}}
	if fields[0] == "L" {
		rec.Measurement.Reading = ukf.PositionReading{X: vals[0], Y: vals[1]}
	} else {
		rec.Measurement.Reading = ukf.RangeBearingReading{Range: vals[0], Bearing: vals[1], RangeRate: vals[2]}
	}

	if extra == 0 {
		return rec, nil
	}
	gt := make([]float64, extra)
	for i := range gt {
		v, err := parseFinite(fields[n+2+i])
		if err != nil {
			return nil, fmt.Errorf("%w: ground truth field %d: %v", ErrMalformedLine, i+1, err)
		}
		gt[i] = v
	}
	rec.GroundTruth = &GroundTruth{PX: gt[0], PY: gt[1], VX: gt[2], VY: gt[3]}
	if extra == 6 {
		rec.GroundTruth.HasYaw = true
		rec.GroundTruth.Yaw = gt[4]
		rec.GroundTruth.YawRate = gt[5]
	}
	return rec, nil
}

// parseFinite parses a float, rejecting NaN and ±Inf which strconv accepts.
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// Reader iterates the records of a log stream.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next record, skipping blank and comment lines. It
// returns io.EOF once the stream is exhausted. Parse errors carry the line
// number; the reader can keep going after one.
func (r *Reader) Next() (*Record, error) {
	for r.scanner.Scan() {
		r.line++
		rec, err := ParseLine(r.scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		if rec == nil {
			continue
		}
		rec.Line = r.line
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading measurements: %w", err)
	}
	return nil, io.EOF
}

// ReadAll parses every record in r, stopping at the first malformed line.
func ReadAll(r io.Reader) ([]Record, error) {
	rd := NewReader(r)
	var out []Record
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, *rec)
	}
}

// FormatRecord renders rec back into the log format.
func FormatRecord(rec Record) string {
	var b strings.Builder
	m := rec.Measurement
	switch r := m.Reading.(type) {
	case ukf.PositionReading:
		fmt.Fprintf(&b, "L\t%s\t%s\t%d", ff(r.X), ff(r.Y), m.TimestampUS)
	case ukf.RangeBearingReading:
		fmt.Fprintf(&b, "R\t%s\t%s\t%s\t%d", ff(r.Range), ff(r.Bearing), ff(r.RangeRate), m.TimestampUS)
	default:
		return ""
	}
	if gt := rec.GroundTruth; gt != nil {
		fmt.Fprintf(&b, "\t%s\t%s\t%s\t%s", ff(gt.PX), ff(gt.PY), ff(gt.VX), ff(gt.VY))
		if gt.HasYaw {
			fmt.Fprintf(&b, "\t%s\t%s", ff(gt.Yaw), ff(gt.YawRate))
		}
	}
	return b.String()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
