package engine

import (
	"sort"
	"testing"
)

func TestComponentNames(t *testing.T) {
	funcs := map[string]bool{
		"Card_new":     true,
		"Card_set":     true,
		"Badge_new":    true,
		"_new":         true,
		"bridge_alloc": true,
		"helper":       true,
	}
	got := componentNames(funcs)
	sort.Strings(got)
	if len(got) != 2 || got[0] != "Badge" || got[1] != "Card" {
		t.Errorf("componentNames = %v, want [Badge Card]", got)
	}
}

func TestPackPtrLen(t *testing.T) {
	tests := []struct {
		ptr, length uint32
	}{
		{0, 0},
		{16, 13},
		{0xffffffff, 1},
		{1, 0xffffffff},
	}
	for _, tt := range tests {
		ptr, length := unpackPtrLen(packPtrLen(tt.ptr, tt.length))
		if ptr != tt.ptr || length != tt.length {
			t.Errorf("round trip (%d, %d) = (%d, %d)", tt.ptr, tt.length, ptr, length)
		}
	}
}
