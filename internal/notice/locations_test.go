package notice

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestNormalizeLocations(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{"upper-cases and trims", []string{" ksea", "KPDX "}, []string{"KSEA", "KPDX"}, false},
		{"collapses duplicates", []string{"KSEA", "ksea", "KBFI"}, []string{"KSEA", "KBFI"}, false},
		{"empty set", nil, nil, true},
		{"blank code", []string{"KSEA", "  "}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeLocations(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeLocations() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("error %v is not ErrValidation", err)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeLocations() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitLocations(t *testing.T) {
	got := SplitLocations("KSEA,KPDX", "KBFI KGEG", "")
	want := []string{"KSEA", "KPDX", "KBFI", "KGEG"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitLocations() = %v, want %v", got, want)
	}
}

func TestParseWindow(t *testing.T) {
	now := time.Date(2024, 3, 5, 17, 30, 0, 0, time.UTC)
	today := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	w, err := ParseWindow("", "", now)
	if err != nil {
		t.Fatalf("ParseWindow() error = %v", err)
	}
	if !w.From.Equal(today) || !w.To.Equal(today) {
		t.Errorf("default window = %v..%v, want today", w.From, w.To)
	}

	w, err = ParseWindow("2024-01-01", "2024-01-02", now)
	if err != nil {
		t.Fatalf("ParseWindow() error = %v", err)
	}
	if !w.To.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("To = %v", w.To)
	}

	if _, err := ParseWindow("2024-01-02", "2024-01-01", now); !errors.Is(err, ErrValidation) {
		t.Errorf("reversed window error = %v, want ErrValidation", err)
	}
	if _, err := ParseWindow("yesterday", "", now); !errors.Is(err, ErrValidation) {
		t.Errorf("bad date error = %v, want ErrValidation", err)
	}
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		in      string
		want    []uint32
		wantErr bool
	}{
		{"12,34", []uint32{12, 34}, false},
		{"[12, 34, 12]", []uint32{12, 34}, false},
		{"4294967295", []uint32{4294967295}, false},
		{"4294967296", nil, true},
		{"12,abc", nil, true},
		{"[]", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIDs(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIDs(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error %v is not ErrValidation", err)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseIDs(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if got := FormatIDs([]uint32{12, 34}); got != "12,34" {
		t.Errorf("FormatIDs() = %q", got)
	}
}
