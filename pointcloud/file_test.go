package pointcloud

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestReadXYZ(t *testing.T) {
	in := `# x y z
0 0 0
1,0,0,255

// comment
0;1;0
`
	buf, err := ReadXYZ(strings.NewReader(in), 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.Size(), test.ShouldEqual, 3)
	test.That(t, buf.Data(), test.ShouldResemble, []float64{0, 0, 0, 1, 0, 0, 0, 1, 0})

	_, err = ReadXYZ(strings.NewReader("1 2\n3\n"), 2)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 2")

	_, err = ReadXYZ(strings.NewReader("1 x\n"), 2)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 1")
}

func TestWriteAndReadXYZFile(t *testing.T) {
	buf, err := NewBufferFromData(2, []float64{0.5, -1, 3, 4e10})
	test.That(t, err, test.ShouldBeNil)

	var out bytes.Buffer
	test.That(t, WriteXYZ(&out, buf), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldEqual, "0.5 -1\n3 4e+10\n")

	fn := filepath.Join(t.TempDir(), "points.xyz")
	test.That(t, os.WriteFile(fn, out.Bytes(), 0o600), test.ShouldBeNil)

	read, err := NewFromFile(fn, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Data(), test.ShouldResemble, buf.Data())

	_, err = NewFromFile(filepath.Join(t.TempDir(), "missing.xyz"), 2)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewFromLASFile(fn, 4)
	test.That(t, err, test.ShouldNotBeNil)
}
