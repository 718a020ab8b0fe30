/*
Copyright © 2025 the ClimExt authors.
This file is part of ClimExt.

ClimExt is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ClimExt is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ClimExt.  If not, see <http://www.gnu.org/licenses/>.
*/

package climext

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Dataset is an open NetCDF file.
type Dataset struct {
	path string
	f    *os.File
	cf   *cdf.File
}

// OpenDataset opens the NetCDF file at the given path.
func OpenDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("climext: %v", err)
	}
	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("climext: opening %s: %v", path, err)
	}
	return &Dataset{path: path, f: f, cf: cf}, nil
}

// Close closes the underlying file.
func (d *Dataset) Close() error { return d.f.Close() }

// Path returns the path the dataset was opened from.
func (d *Dataset) Path() string { return d.path }

// varInfo describes the dimensions of one variable after its coordinate
// names have been canonicalized: the names and lengths as stored in the
// file, and whether the leading dimension is time.
type varInfo struct {
	dims    []string // dimension names as stored in the file
	coords  []string // canonical names, same order
	lens    []int
	hasTime bool
}

// varInfo canonicalizes the dimensions of the named variable. Variables
// must be arranged as (latitude, longitude), optionally with a leading
// time dimension; coordinate names that match no known synonym and
// dimension orders other than (time, latitude, longitude) are errors.
func (d *Dataset) varInfo(varName string) (*varInfo, error) {
	dims := d.cf.Header.Dimensions(varName)
	if len(dims) == 0 {
		return nil, fmt.Errorf("climext: variable %s not in file %s", varName, d.path)
	}
	// Lengths returns the header's own slice; copy it so overwriting the
	// record-dimension length below cannot corrupt the header.
	lens := append([]int{}, d.cf.Header.Lengths(varName)...)
	if lens[0] == 0 { // record dimension; get the count from the file size
		fi, err := d.f.Stat()
		if err != nil {
			return nil, fmt.Errorf("climext: %v", err)
		}
		lens[0] = int(d.cf.Header.NumRecs(fi.Size()))
	}

	v := &varInfo{dims: dims, lens: lens}
	for _, dim := range dims {
		c, err := canonicalCoord(dim)
		if err != nil {
			return nil, fmt.Errorf("climext: variable %s in %s: %v", varName, d.path, err)
		}
		v.coords = append(v.coords, c)
	}

	var want []string
	switch len(dims) {
	case 2:
		want = []string{CoordLat, CoordLon}
	case 3:
		want = []string{CoordTime, CoordLat, CoordLon}
		v.hasTime = true
	default:
		return nil, fmt.Errorf("climext: variable %s in %s has %d dimensions; expected 2 or 3",
			varName, d.path, len(dims))
	}
	for i, c := range v.coords {
		if c != want[i] {
			return nil, fmt.Errorf("climext: variable %s in %s: dimension order is %v; expected (%s)",
				varName, d.path, v.coords, wantOrder(want))
		}
	}
	return v, nil
}

func wantOrder(want []string) string {
	s := ""
	for i, w := range want {
		if i > 0 {
			s += ", "
		}
		s += w
	}
	return s
}

// readCoord reads the coordinate variable for the named dimension.
// The end corner is given explicitly because the cdf reader cannot run
// past the first record of an unlimited coordinate otherwise.
func (d *Dataset) readCoord(dim string, n int) ([]float64, error) {
	if len(d.cf.Header.Lengths(dim)) == 0 {
		return nil, fmt.Errorf("climext: file %s has no coordinate variable for dimension %s", d.path, dim)
	}
	if n <= 0 {
		return nil, fmt.Errorf("climext: dimension %s in %s is empty", dim, d.path)
	}
	r := d.cf.Reader(dim, []int{0}, []int{n - 1})
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("climext: reading coordinate %s from %s: %v", dim, d.path, err)
	}
	c, err := toFloat64s(buf)
	if err != nil {
		return nil, fmt.Errorf("climext: coordinate %s in %s: %v", dim, d.path, err)
	}
	return c, nil
}

// timeAxis reads and decodes the time coordinate stored in the named
// dimension variable.
func (d *Dataset) timeAxis(dim string, n int) (*TimeAxis, error) {
	vals, err := d.readCoord(dim, n)
	if err != nil {
		return nil, err
	}
	units := attrString(d.cf.Header, dim, "units")
	calendar := attrString(d.cf.Header, dim, "calendar")
	t, err := NewTimeAxis(vals, units, calendar)
	if err != nil {
		return nil, fmt.Errorf("climext: time coordinate in %s: %v", d.path, err)
	}
	return t, nil
}

// ReadField reads the named variable in its entirety, along with its
// coordinates.
func (d *Dataset) ReadField(varName string) (*Field, error) {
	v, err := d.varInfo(varName)
	if err != nil {
		return nil, err
	}
	f, err := d.fieldCoords(varName, v)
	if err != nil {
		return nil, err
	}

	// Read from the origin through the last element. Giving the corners
	// explicitly lets the read cross record boundaries in files with an
	// unlimited time dimension.
	n := 1
	start := make([]int, len(v.lens))
	end := make([]int, len(v.lens))
	for i, l := range v.lens {
		n *= l
		end[i] = l - 1
	}
	r := d.cf.Reader(varName, start, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("climext: reading %s from %s: %v", varName, d.path, err)
	}
	dat, err := toFloat64s(buf)
	if err != nil {
		return nil, fmt.Errorf("climext: variable %s in %s: %v", varName, d.path, err)
	}
	f.Data = sparse.ZerosDense(v.lens...)
	copy(f.Data.Elements, dat)
	normalizeLat(f)
	if err := f.Check(); err != nil {
		return nil, err
	}
	return f, nil
}

// ReadLayer reads the two-dimensional layer of the named variable at
// time index t.
func (d *Dataset) ReadLayer(varName string, t int) (*Field, error) {
	v, err := d.varInfo(varName)
	if err != nil {
		return nil, err
	}
	if !v.hasTime {
		return nil, fmt.Errorf("climext: variable %s in %s has no time dimension", varName, d.path)
	}
	if t < 0 || t >= v.lens[0] {
		return nil, fmt.Errorf("climext: time index %d out of range for %s in %s", t, varName, d.path)
	}
	f := &Field{
		Name:  varName,
		Units: attrString(d.cf.Header, varName, "units"),
	}
	if f.Lat, err = d.readCoord(v.dims[1], v.lens[1]); err != nil {
		return nil, err
	}
	if f.Lon, err = d.readCoord(v.dims[2], v.lens[2]); err != nil {
		return nil, err
	}

	ny, nx := v.lens[1], v.lens[2]
	start, end := []int{t, 0, 0}, []int{t + 1, 0, 0}
	r := d.cf.Reader(varName, start, end)
	buf := r.Zero(ny * nx)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("climext: reading %s[%d] from %s: %v", varName, t, d.path, err)
	}
	dat, err := toFloat64s(buf)
	if err != nil {
		return nil, fmt.Errorf("climext: variable %s in %s: %v", varName, d.path, err)
	}
	f.Data = sparse.ZerosDense(ny, nx)
	copy(f.Data.Elements, dat)
	normalizeLat(f)
	return f, nil
}

// TimeAxis reads and decodes the time coordinate of the named variable
// without reading the variable's data.
func (d *Dataset) TimeAxis(varName string) (*TimeAxis, error) {
	v, err := d.varInfo(varName)
	if err != nil {
		return nil, err
	}
	if !v.hasTime {
		return nil, fmt.Errorf("climext: variable %s in %s has no time dimension", varName, d.path)
	}
	return d.timeAxis(v.dims[0], v.lens[0])
}

// readBand reads the latitude rows [j0, j1) of the named variable at
// time index t into a float32 buffer of length (j1-j0)*nlon.
func (d *Dataset) readBand(varName string, v *varInfo, t, j0, j1 int) ([]float32, error) {
	nx := v.lens[len(v.lens)-1]
	n := (j1 - j0) * nx
	var start, end []int
	if v.hasTime {
		start, end = []int{t, j0, 0}, []int{t, j1, 0}
	} else {
		start, end = []int{j0, 0}, []int{j1, 0}
	}
	r := d.cf.Reader(varName, start, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("climext: reading %s rows %d-%d from %s: %v", varName, j0, j1, d.path, err)
	}
	return toFloat32s(buf)
}

// fieldCoords assembles a Field with its coordinates filled in but no
// data.
func (d *Dataset) fieldCoords(varName string, v *varInfo) (*Field, error) {
	f := &Field{
		Name:  varName,
		Units: attrString(d.cf.Header, varName, "units"),
	}
	i := 0
	if v.hasTime {
		t, err := d.timeAxis(v.dims[0], v.lens[0])
		if err != nil {
			return nil, err
		}
		f.Time = t
		i = 1
	}
	var err error
	if f.Lat, err = d.readCoord(v.dims[i], v.lens[i]); err != nil {
		return nil, err
	}
	if f.Lon, err = d.readCoord(v.dims[i+1], v.lens[i+1]); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteField saves f as a new NetCDF file at the given path, with
// coordinate variables for each dimension. The data is first written to
// a temporary file which is renamed into place once it is complete, so
// an interrupted run cannot leave a truncated file under the final name.
func WriteField(path string, f *Field) error {
	if err := f.Check(); err != nil {
		return err
	}

	dims := []string{CoordLat, CoordLon}
	lens := []int{len(f.Lat), len(f.Lon)}
	if f.Time != nil {
		dims = append([]string{CoordTime}, dims...)
		lens = append([]int{f.Time.Len()}, lens...)
	}

	h := cdf.NewHeader(dims, lens)
	h.AddAttribute("", "comment", "ClimExt climate index data file")
	h.AddVariable(CoordLat, []string{CoordLat}, []float64{0})
	h.AddAttribute(CoordLat, "units", "degrees_north")
	h.AddVariable(CoordLon, []string{CoordLon}, []float64{0})
	h.AddAttribute(CoordLon, "units", "degrees_east")
	if f.Time != nil {
		h.AddVariable(CoordTime, []string{CoordTime}, []float64{0})
		if f.Time.Units != "" {
			h.AddAttribute(CoordTime, "units", f.Time.Units)
		}
		if f.Time.Calendar != "" {
			h.AddAttribute(CoordTime, "calendar", f.Time.Calendar)
		}
	}
	h.AddVariable(f.Name, dims, []float32{0})
	if f.Units != "" {
		h.AddAttribute(f.Name, "units", f.Units)
	}
	h.Define()

	w, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		return fmt.Errorf("climext: %v", err)
	}
	tmp := w.Name()
	if err := writeFieldFile(w, h, f); err != nil {
		w.Close()
		os.Remove(tmp)
		return fmt.Errorf("climext: writing %s: %v", path, err)
	}
	if err := w.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("climext: writing %s: %v", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("climext: %v", err)
	}
	return nil
}

func writeFieldFile(w *os.File, h *cdf.Header, f *Field) error {
	ff, err := cdf.Create(w, h) // writes the header
	if err != nil {
		return err
	}
	if err := writeVar64(ff, CoordLat, f.Lat); err != nil {
		return err
	}
	if err := writeVar64(ff, CoordLon, f.Lon); err != nil {
		return err
	}
	if f.Time != nil {
		if err := writeVar64(ff, CoordTime, f.Time.Values); err != nil {
			return err
		}
	}
	if err := writeVar32(ff, f.Name, f.Data); err != nil {
		return err
	}
	return cdf.UpdateNumRecs(w)
}

func writeVar64(f *cdf.File, name string, data []float64) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing variable %s: %v", name, err)
	}
	return nil
}

func writeVar32(f *cdf.File, name string, data *sparse.DenseArray) error {
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data32); err != nil {
		return fmt.Errorf("writing variable %s: %v", name, err)
	}
	return nil
}

func toFloat64s(buf interface{}) ([]float64, error) {
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	}
	return nil, fmt.Errorf("unsupported data type %T", buf)
}

func toFloat32s(buf interface{}) ([]float32, error) {
	switch b := buf.(type) {
	case []float32:
		return b, nil
	case []float64:
		o := make([]float32, len(b))
		for i, v := range b {
			o[i] = float32(v)
		}
		return o, nil
	case []int32:
		o := make([]float32, len(b))
		for i, v := range b {
			o[i] = float32(v)
		}
		return o, nil
	case []int16:
		o := make([]float32, len(b))
		for i, v := range b {
			o[i] = float32(v)
		}
		return o, nil
	}
	return nil, fmt.Errorf("unsupported data type %T", buf)
}

func attrString(h *cdf.Header, v, name string) string {
	switch a := h.GetAttribute(v, name).(type) {
	case string:
		return a
	case []uint8:
		return string(a)
	}
	return ""
}
