package internal

import (
	"reflect"
	"testing"
)

func kf(idx uint64, base int64) KeyFrame {
	return KeyFrame{Idx: idx, Base: base, Len: 0}
}

func TestBuildIntervalMap(t *testing.T) {
	table := KeyframeTable{kf(0, 0), kf(30, 1000), kf(60, 2000), kf(90, 3000)}

	tests := []struct {
		name       string
		wanted     []uint64
		wantStarts []uint64
	}{
		{
			name:       "single frame mid first interval",
			wanted:     []uint64{5},
			wantStarts: []uint64{0},
		},
		{
			name:       "frames spanning two intervals",
			wanted:     []uint64{5, 45},
			wantStarts: []uint64{0, 30},
		},
		{
			name:       "frame exactly on a keyframe boundary belongs to that interval",
			wanted:     []uint64{30},
			wantStarts: []uint64{30},
		},
		{
			name:       "duplicate and unordered input is deduplicated and sorted",
			wanted:     []uint64{45, 5, 5, 45},
			wantStarts: []uint64{0, 30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, err := BuildIntervalMap(table, tt.wanted)
			if err != nil {
				t.Fatalf("BuildIntervalMap() error = %v", err)
			}
			var starts []uint64
			for _, e := range m {
				starts = append(starts, e.Interval.Start.Idx)
			}
			if !reflect.DeepEqual(starts, tt.wantStarts) {
				t.Errorf("interval starts = %v, want %v", starts, tt.wantStarts)
			}
		})
	}
}

func TestBuildIntervalMap_NoTailInterval(t *testing.T) {
	// 90 is the last keyframe's own idx; frames at or beyond it cannot
	// be placed in any interval, since no pair follows the last entry.
	table := KeyframeTable{kf(0, 0), kf(30, 1000), kf(60, 2000), kf(90, 3000)}

	m, dropped, err := BuildIntervalMap(table, []uint64{90, 95})
	if err != nil {
		t.Fatalf("BuildIntervalMap() error = %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("interval map = %+v, want empty (no tail interval)", m)
	}
	if !reflect.DeepEqual(dropped, []uint64{90, 95}) {
		t.Errorf("dropped = %v, want [90 95]", dropped)
	}
}

func TestBuildIntervalMap_DroppedBelowFirstKeyframe(t *testing.T) {
	table := KeyframeTable{kf(10, 1000), kf(40, 2000)}
	m, dropped, err := BuildIntervalMap(table, []uint64{3, 20})
	if err != nil {
		t.Fatalf("BuildIntervalMap() error = %v", err)
	}

	if len(dropped) != 1 || dropped[0] != 3 {
		t.Fatalf("dropped = %v, want [3]", dropped)
	}
	if len(m) != 1 || m[0].Interval.Start.Idx != 10 {
		t.Fatalf("interval map = %+v, want one entry starting at 10", m)
	}
}

func TestBuildIntervalMap_EmptyInputs(t *testing.T) {
	if _, _, err := BuildIntervalMap(nil, []uint64{1, 2}); err != ErrEmptyInput {
		t.Errorf("empty table: err = %v, want ErrEmptyInput", err)
	}
	if _, _, err := BuildIntervalMap(KeyframeTable{kf(0, 0)}, nil); err != ErrEmptyInput {
		t.Errorf("empty wanted: err = %v, want ErrEmptyInput", err)
	}
}
