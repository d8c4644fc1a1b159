package bulb

import (
	"errors"
	"testing"
)

func TestAllocateChannel(t *testing.T) {
	full := make([]int, MaxChannels)
	for i := range full {
		full[i] = i
	}

	tests := []struct {
		name     string
		occupied []int
		want     int
		wantErr  error
	}{
		{name: "empty set", occupied: nil, want: 0},
		{name: "first taken", occupied: []int{0}, want: 1},
		{name: "gap is reused", occupied: []int{0, 1, 3, 4}, want: 2},
		{name: "unordered input", occupied: []int{4, 0, 2, 1}, want: 3},
		{name: "duplicates", occupied: []int{0, 0, 1, 1}, want: 2},
		{name: "out of range ignored", occupied: []int{-1, 32, 99, 0}, want: 1},
		{name: "only last free", occupied: full[:MaxChannels-1], want: MaxChannels - 1},
		{name: "exhausted", occupied: full, wantErr: ErrNoChannelAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AllocateChannel(tt.occupied)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("AllocateChannel() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("AllocateChannel() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("AllocateChannel() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAllocateChannel_Deterministic(t *testing.T) {
	occupied := []int{0, 2, 5, 6}
	first, err := AllocateChannel(occupied)
	if err != nil {
		t.Fatalf("AllocateChannel() error = %v", err)
	}
	for range 100 {
		got, err := AllocateChannel(occupied)
		if err != nil || got != first {
			t.Fatalf("AllocateChannel() = %d, %v; want %d every time", got, err, first)
		}
	}
}

func TestAllocateChannelExcluding(t *testing.T) {
	full := make([]int, MaxChannels)
	for i := range full {
		full[i] = i
	}

	got, err := AllocateChannelExcluding(full, 7)
	if err != nil {
		t.Fatalf("AllocateChannelExcluding() error = %v", err)
	}
	if got != 7 {
		t.Errorf("AllocateChannelExcluding(full, 7) = %d, want 7", got)
	}

	got, err = AllocateChannelExcluding([]int{0, 1, 2}, 1, 99)
	if err != nil || got != 1 {
		t.Errorf("AllocateChannelExcluding() = %d, %v; want 1", got, err)
	}
}
