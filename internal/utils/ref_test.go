package utils

import "testing"

func TestSplitRef(t *testing.T) {
	for _, ref := range []string{"net20", "NET20", "net 20", "net-20"} {
		tag, pk, err := SplitRef(ref)
		if err != nil {
			t.Fatalf("SplitRef(%q): %v", ref, err)
		}
		if tag != "net" || pk != 20 {
			t.Errorf("SplitRef(%q) = (%s, %d), want (net, 20)", ref, tag, pk)
		}
	}
}

func TestSplitRefInvalid(t *testing.T) {
	for _, ref := range []string{"asdf123a", "123asdf", "", "net"} {
		if _, _, err := SplitRef(ref); err == nil {
			t.Errorf("SplitRef(%q) should fail", ref)
		}
	}
}

func TestPrettySpeed(t *testing.T) {
	tests := map[int64]string{
		0:       "",
		100:     "100M",
		1000:    "1G",
		10000:   "10G",
		400000:  "400G",
		1000000: "1T",
		2500000: "2T",
	}
	for in, want := range tests {
		if got := PrettySpeed(in); got != want {
			t.Errorf("PrettySpeed(%d) = %q, want %q", in, got, want)
		}
	}
}
