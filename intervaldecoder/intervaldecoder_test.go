package intervaldecoder_test

import (
	"errors"
	"testing"

	"github.com/primkey7607/vdms/intervaldecoder"
	"github.com/primkey7607/vdms/keyframeindex"
)

// TestInit_FailFast validates that Init rejects obviously bad inputs
// (an empty path, a file that cannot be opened) with the matching
// error kind.
func TestInit_FailFast(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{
			name:    "empty path",
			path:    "",
			wantErr: intervaldecoder.ErrMissingFile,
		},
		{
			name:    "nonexistent file",
			path:    "/nonexistent/does-not-exist.mp4",
			wantErr: intervaldecoder.ErrOpenFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := intervaldecoder.New()
			defer dec.Close()

			err := dec.Init(tt.path)
			if err == nil {
				t.Fatalf("Init(%q) succeeded, want error", tt.path)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Init(%q) error = %v, want kind %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

// TestClose_IdempotentAfterFailedInit validates that Close never faults
// when called after a failed Init, and is safe to call more than once.
func TestClose_IdempotentAfterFailedInit(t *testing.T) {
	dec := intervaldecoder.New()

	if err := dec.Init(""); err == nil {
		t.Fatal("Init(\"\") unexpectedly succeeded")
	}

	if err := dec.Close(); err != nil {
		t.Errorf("Close() after failed Init = %v, want nil", err)
	}
	if err := dec.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
}

// TestDecode_BeforeInit validates that Decode refuses to run on an
// un-initialized decoder rather than dereferencing a nil context.
func TestDecode_BeforeInit(t *testing.T) {
	dec := intervaldecoder.New()
	defer dec.Close()

	if _, err := dec.Decode(); !errors.Is(err, intervaldecoder.ErrNotInitialized) {
		t.Fatalf("Decode() before Init() error = %v, want ErrNotInitialized", err)
	}
}

// TestSetWanted_EmptyInput validates that SetWanted is pure computation
// independent of Init, and rejects an empty table or wanted set.
func TestSetWanted_EmptyInput(t *testing.T) {
	dec := intervaldecoder.New()
	defer dec.Close()

	if _, err := dec.SetWanted(nil, []uint64{1, 2}); !errors.Is(err, intervaldecoder.ErrEmptyInput) {
		t.Errorf("SetWanted(nil table) error = %v, want ErrEmptyInput", err)
	}
	table := keyframeindex.KeyframeTable{{Idx: 0, Base: 0, Len: 0}}
	if _, err := dec.SetWanted(table, nil); !errors.Is(err, intervaldecoder.ErrEmptyInput) {
		t.Errorf("SetWanted(nil wanted) error = %v, want ErrEmptyInput", err)
	}
}

// TestSetWanted_DropsUnreachableFrames validates that frames at or past
// the last keyframe are reported as dropped rather than silently lost,
// since BuildIntervalMap never synthesizes a tail interval.
func TestSetWanted_DropsUnreachableFrames(t *testing.T) {
	dec := intervaldecoder.New()
	defer dec.Close()

	table := keyframeindex.KeyframeTable{
		{Idx: 0, Base: 0, Len: 0},
		{Idx: 30, Base: 1000, Len: 0},
		{Idx: 60, Base: 2000, Len: 0},
	}
	dropped, err := dec.SetWanted(table, []uint64{5, 45, 60, 90})
	if err != nil {
		t.Fatalf("SetWanted() error = %v", err)
	}
	if len(dropped) != 2 || dropped[0] != 60 || dropped[1] != 90 {
		t.Errorf("dropped = %v, want [60 90]", dropped)
	}
}
