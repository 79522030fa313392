package keyframeindex_test

import (
	"errors"
	"testing"

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
			wantErr: keyframeindex.ErrMissingFile,
		},
		{
			name:    "nonexistent file",
			path:    "/nonexistent/does-not-exist.mp4",
			wantErr: keyframeindex.ErrOpenFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := keyframeindex.New()
			defer idx.Close()

			err := idx.Init(tt.path)
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
	idx := keyframeindex.New()

	if err := idx.Init(""); err == nil {
		t.Fatal("Init(\"\") unexpectedly succeeded")
	}

	if err := idx.Close(); err != nil {
		t.Errorf("Close() after failed Init = %v, want nil", err)
	}
	if err := idx.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
}

// TestParse_BeforeInit validates that Parse refuses to run on an
// un-initialized indexer rather than dereferencing a nil context.
func TestParse_BeforeInit(t *testing.T) {
	idx := keyframeindex.New()
	defer idx.Close()

	if _, err := idx.Parse(); err == nil {
		t.Fatal("Parse() before Init() succeeded, want error")
	}
}
