package xid

import (
	"strings"
	"testing"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	a := New("req")
	b := New("req")
	if !strings.HasPrefix(a, "req-") {
		t.Fatalf("expected req- prefix, got %q", a)
	}
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	if !Valid("req", a) {
		t.Fatalf("expected %q to validate", a)
	}
}

func TestValidRejectsForeignIDs(t *testing.T) {
	cases := []string{"", "req-", "req-not-a-uuid", "job-" + New(""), "<script>"}
	for _, id := range cases {
		if Valid("req", id) {
			t.Fatalf("expected %q to be rejected", id)
		}
	}
	if !Valid("", New("")) {
		t.Fatalf("expected bare uuid to validate")
	}
}
