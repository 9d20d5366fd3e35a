package arrayfile

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeDest struct {
	vals []int64
}

func (d *fakeDest) Length() int                    { return len(d.vals) }
func (d *fakeDest) SetRaw(index int, value int64) { d.vals[index] = value }

func TestCreateOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indexes.dat")

	af, err := Create(path, 16, Width8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := af.Put(0, 100); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := af.Put(5, 500); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := af.WriteWaterMarks(2, 2); err != nil {
		t.Fatalf("WriteWaterMarks: %v", err)
	}
	if err := af.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	af2, err := Open(path, Width8)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer af2.Close()

	if af2.Length() != 16 {
		t.Fatalf("Length = %d, want 16", af2.Length())
	}
	if af2.LowWaterMark() != 2 || af2.HighWaterMark() != 2 {
		t.Fatalf("water marks = (%d,%d), want (2,2)", af2.LowWaterMark(), af2.HighWaterMark())
	}

	dst := &fakeDest{vals: make([]int64, 16)}
	if err := af2.Load(dst); err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := make([]int64, 16)
	want[0], want[5] = 100, 500
	if diff := cmp.Diff(want, dst.vals); diff != "" {
		t.Fatalf("loaded vals mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenAdoptsHeaderWidth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indexes.dat")

	af, err := Create(path, 4, Width4)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	af.Close()

	// The header says Width4; a caller asking for Width8 gets Width4
	// back rather than a corrupt-header error — the header is
	// authoritative on reopen.
	af2, err := Open(path, Width8)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer af2.Close()

	if af2.Width() != Width4 {
		t.Fatalf("Width() = %d, want %d (from header)", af2.Width(), Width4)
	}
}

func TestSetArrayLengthGrowAndShrink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indexes.dat")

	af, err := Create(path, 4, Width4)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer af.Close()

	if err := af.Put(3, 9); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := af.SetArrayLength(8); err != nil {
		t.Fatalf("SetArrayLength grow: %v", err)
	}
	if af.Length() != 8 {
		t.Fatalf("Length = %d, want 8", af.Length())
	}

	dst := &fakeDest{vals: make([]int64, 8)}
	if err := af.Load(dst); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if dst.vals[3] != 9 {
		t.Fatalf("vals[3] = %d, want 9", dst.vals[3])
	}
	for i := 4; i < 8; i++ {
		if dst.vals[i] != 0 {
			t.Fatalf("vals[%d] = %d, want 0 (zero-filled tail)", i, dst.vals[i])
		}
	}

	if err := af.SetArrayLength(2); err != nil {
		t.Fatalf("SetArrayLength shrink: %v", err)
	}
	if af.Length() != 2 {
		t.Fatalf("Length = %d, want 2", af.Length())
	}
}

func TestPutBulkLastWriteWinsPerIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indexes.dat")

	af, err := Create(path, 4, Width8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer af.Close()

	err = af.PutBulk([]Record{
		{Index: 1, Value: 10},
		{Index: 1, Value: 20},
		{Index: 2, Value: 30},
	})
	if err != nil {
		t.Fatalf("PutBulk: %v", err)
	}

	dst := &fakeDest{vals: make([]int64, 4)}
	if err := af.Load(dst); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if dst.vals[1] != 20 {
		t.Fatalf("vals[1] = %d, want 20 (last write wins)", dst.vals[1])
	}
	if dst.vals[2] != 30 {
		t.Fatalf("vals[2] = %d, want 30", dst.vals[2])
	}
}
