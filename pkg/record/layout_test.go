package record

import (
	"errors"
	"testing"
)

func TestLookupLayout(t *testing.T) {
	tests := []struct {
		name     string
		wantSize int
		wantErr  bool
	}{
		{"sample", SampleSize, false},
		{"file_access", FileAccessSize, false},
		{"migration", MigrationSize, false},
		{"unknown", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout, err := LookupLayout(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LookupLayout() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if layout.Size() != tt.wantSize {
				t.Errorf("Size() = %d, want %d", layout.Size(), tt.wantSize)
			}
			if layout.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", layout.Name(), tt.name)
			}
		})
	}
}

func TestLayoutNames(t *testing.T) {
	names := LayoutNames()
	if len(names) != 3 || names[0] != "file_access" || names[1] != "migration" || names[2] != "sample" {
		t.Errorf("LayoutNames() = %v", names)
	}
}

func TestSampleLayout_Decode(t *testing.T) {
	obj := make([]byte, SampleSize)
	s := Sample{ID: 7}
	copy(s.Padding[:], "abc")
	s.Put(obj)

	values, err := SampleLayout.Decode(obj)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(values) != len(SampleLayout.Columns()) {
		t.Fatalf("Decode() returned %d values for %d columns", len(values), len(SampleLayout.Columns()))
	}
	if values[0] != uint64(7) {
		t.Errorf("id = %v, want 7", values[0])
	}
	if values[1] != "abc" {
		t.Errorf("padding = %q, want abc", values[1])
	}
}

func TestFileAccessLayout_Decode(t *testing.T) {
	obj := make([]byte, FileAccessSize)
	FileAccess{Ino: 42, Pos: -1, Sec: 1700000000, Usec: 999999}.Put(obj)

	values, err := FileAccessLayout.Decode(obj)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []any{uint64(42), int64(-1), int64(1700000000), int64(999999)}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("values[%d] = %v, want %v", i, values[i], want[i])
		}
	}
}

func TestMigrationLayout_Decode(t *testing.T) {
	obj := make([]byte, MigrationSize)
	for i := range obj {
		obj[i] = 0xff
	}
	Migration{PID: 1234, SrcCPU: 0, DstCPU: 3, Sec: 12, Usec: 500}.Put(obj)

	values, err := MigrationLayout.Decode(obj)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []any{int32(1234), int32(0), int32(3), int64(12), int64(500)}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("values[%d] = %v, want %v", i, values[i], want[i])
		}
	}
	if obj[4] != 0 || obj[7] != 0 {
		t.Error("padding bytes should be zeroed")
	}
}

func TestDecode_WrongSize(t *testing.T) {
	for _, layout := range []Layout{SampleLayout, FileAccessLayout, MigrationLayout} {
		if _, err := layout.Decode(make([]byte, 16)); !errors.Is(err, ErrObjectSize) {
			t.Errorf("%s.Decode() error = %v, want ErrObjectSize", layout.Name(), err)
		}
	}
}
