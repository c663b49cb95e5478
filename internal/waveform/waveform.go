// Package waveform reads radar-altimeter waveforms from NetCDF-classic
// products and computes per-sample statistics over them.
package waveform

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"
	"gonum.org/v1/gonum/mat"
)

// ErrNotTwoDimensional is returned when a variable is not records × samples.
var ErrNotTwoDimensional = errors.New("variable is not two-dimensional")

// Variable describes one variable in the file header.
type Variable struct {
	Name    string
	Dims    []string
	Lengths []int
	Record  bool
}

// File is an open NetCDF file.
type File struct {
	path string
	f    *os.File
	nc   *cdf.File
	size int64
}

// Open reads the header of a NetCDF-classic file.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: not a NetCDF-classic file: %w", path, err)
	}
	return &File{path: path, f: f, nc: nc, size: info.Size()}, nil
}

// Close releases the file.
func (f *File) Close() error { return f.f.Close() }

// Path returns the file path given to Open.
func (f *File) Path() string { return f.path }

// Variables lists every variable with its dimensions. Record dimensions report
// the number of records actually present.
func (f *File) Variables() []Variable {
	h := f.nc.Header
	var vars []Variable
	for _, name := range h.Variables() {
		vars = append(vars, Variable{
			Name:    name,
			Dims:    h.Dimensions(name),
			Lengths: f.lengths(name),
			Record:  h.IsRecordVariable(name),
		})
	}
	return vars
}

// Attribute returns a variable attribute, or a global one when v is empty.
// The value is nil when the attribute does not exist.
func (f *File) Attribute(v, a string) interface{} {
	return f.nc.Header.GetAttribute(v, a)
}

func (f *File) lengths(v string) []int {
	l := append([]int(nil), f.nc.Header.Lengths(v)...)
	if f.nc.Header.IsRecordVariable(v) && len(l) > 0 {
		l[0] = int(f.nc.Header.NumRecs(f.size))
	}
	return l
}

// Waveform is a records × samples matrix. Fill values are NaN.
type Waveform struct {
	Name  string
	Units string
	Data  *mat.Dense
}

// Dims returns the number of records and samples.
func (w *Waveform) Dims() (records, samples int) {
	if w.Data == nil || w.Data.IsEmpty() {
		return 0, 0
	}
	return w.Data.Dims()
}

// Load reads a two-dimensional variable. Raw values equal to the variable's
// fill value become NaN; the rest are scaled as raw*scale_factor + add_offset.
func (f *File) Load(name string) (*Waveform, error) {
	h := f.nc.Header
	dims := f.lengths(name)
	if dims == nil {
		return nil, fmt.Errorf("%s: no variable %q", f.path, name)
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("%s: %q has %d dimensions: %w", f.path, name, len(dims), ErrNotTwoDimensional)
	}

	w := &Waveform{Name: name, Units: stringAttr(h.GetAttribute(name, "units"))}
	records, samples := dims[0], dims[1]
	if records == 0 || samples == 0 {
		return w, nil
	}

	n := records * samples
	r := f.nc.Reader(name, []int{0, 0}, []int{records - 1, samples - 1})
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("%s: failed to read %q: %w", f.path, name, err)
	}

	raw, err := toFloat64(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %q: %w", f.path, name, err)
	}

	scale := numberAttr(h.GetAttribute(name, "scale_factor"), 1)
	offset := numberAttr(h.GetAttribute(name, "add_offset"), 0)
	fill, hasFill := scalar(h.FillValue(name))

	for i, v := range raw {
		if hasFill && v == fill {
			raw[i] = math.NaN()
			continue
		}
		raw[i] = v*scale + offset
	}
	w.Data = mat.NewDense(records, samples, raw)
	return w, nil
}

// toFloat64 widens a slice read from the file. NetCDF bytes are signed.
func toFloat64(buf interface{}) ([]float64, error) {
	switch b := buf.(type) {
	case []uint8:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(int8(v))
		}
		return out, nil
	case []int16:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	case []float32:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	case []float64:
		return append([]float64(nil), b...), nil
	}
	return nil, fmt.Errorf("unsupported storage type %T", buf)
}

// scalar converts a single header value to float64.
func scalar(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int8:
		return float64(x), true
	case uint8:
		return float64(int8(x)), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// numberAttr returns the first element of a numeric attribute, or def.
func numberAttr(v interface{}, def float64) float64 {
	switch x := v.(type) {
	case []uint8:
		if len(x) > 0 {
			return float64(int8(x[0]))
		}
	case []int16:
		if len(x) > 0 {
			return float64(x[0])
		}
	case []int32:
		if len(x) > 0 {
			return float64(x[0])
		}
	case []float32:
		if len(x) > 0 {
			return float64(x[0])
		}
	case []float64:
		if len(x) > 0 {
			return x[0]
		}
	}
	return def
}

func stringAttr(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
