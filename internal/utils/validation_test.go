package utils

import (
	"testing"
)

func TestValidateMessage(t *testing.T) {
	got, err := ValidateMessage("  buy milk ")
	if err != nil {
		t.Fatalf("ValidateMessage error: %v", err)
	}
	if got != "buy milk" {
		t.Errorf("expected trimmed message, got %q", got)
	}

	if _, err := ValidateMessage("   "); !IsKind(err, KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID("42"); err != nil || id != 42 {
		t.Errorf("expected 42, got %d (%v)", id, err)
	}
	for _, bad := range []string{"", "abc", "0", "-3"} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList([]string{"5,3", "7"})
	if err != nil {
		t.Fatalf("ParseIDList error: %v", err)
	}
	want := []int64{5, 3, 7}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("expected %v, got %v", want, ids)
		}
	}

	if _, err := ParseIDList([]string{"1,x"}); err == nil {
		t.Error("expected error for non-numeric id")
	}
}
