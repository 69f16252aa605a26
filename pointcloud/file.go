package pointcloud

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/edaniels/lidario"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// NewFromFile reads a point file into a buffer of dimension dim. LAS files are read
// through lidario and always provide x, y, z; everything else is treated as ASCII
// rows (see ReadXYZ).
func NewFromFile(fn string, dim int) (Buffer, error) {
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".las":
		return NewFromLASFile(fn, dim)
	default:
		//nolint:gosec
		f, err := os.Open(fn)
		if err != nil {
			return Buffer{}, err
		}
		defer utils.UncheckedErrorFunc(f.Close)
		buf, err := ReadXYZ(f, dim)
		if err != nil {
			return Buffer{}, errors.Wrapf(err, "reading %q", fn)
		}
		return buf, nil
	}
}

// NewFromLASFile returns a buffer holding the first dim (at most 3) coordinates of every
// point of a LAS file.
func NewFromLASFile(fn string, dim int) (Buffer, error) {
	if dim < 1 || dim > 3 {
		return Buffer{}, errors.Errorf("LAS points have 3 coordinates, cannot read %d", dim)
	}
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return Buffer{}, err
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	data := make([]float64, 0, lf.Header.NumberPoints*dim)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return Buffer{}, err
		}
		pd := p.PointData()
		data = append(data, []float64{pd.X, pd.Y, pd.Z}[:dim]...)
	}
	return NewBufferFromData(dim, data)
}

// ReadXYZ reads ASCII rows of at least dim numbers separated by whitespace or commas.
// Blank lines and lines starting with '#' or '//' are skipped; columns past dim are
// ignored.
func ReadXYZ(r io.Reader, dim int) (Buffer, error) {
	if dim < 1 {
		return NewBufferFromData(dim, nil)
	}
	var data []float64
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		fields := strings.FieldsFunc(line, func(c rune) bool {
			return c == ',' || c == ';' || unicode.IsSpace(c)
		})
		if len(fields) < dim {
			return Buffer{}, errors.Errorf("line %d: expected %d values but got %d", lineNum, dim, len(fields))
		}
		for _, field := range fields[:dim] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Buffer{}, errors.Wrapf(err, "line %d", lineNum)
			}
			data = append(data, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return Buffer{}, err
	}
	return NewBufferFromData(dim, data)
}

// WriteXYZ writes the points of buf as space separated ASCII rows.
func WriteXYZ(w io.Writer, buf Buffer) error {
	bw := bufio.NewWriter(w)
	for id := 0; id < buf.Size(); id++ {
		for i, v := range buf.row(id) {
			if i > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
