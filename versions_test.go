package quicrx

import "testing"

func TestVersionIndexFindsKnownVersions(t *testing.T) {
	for i, v := range SupportedVersions {
		if got := versionIndex(v); got != i {
			t.Fatalf("versionIndex(%#x) = %d, want %d", v, got, i)
		}
	}
}

func TestVersionIndexUnknownReturnsSentinel(t *testing.T) {
	if got := versionIndex(0xaaaaaaaa); got != -1 {
		t.Fatalf("versionIndex(unknown) = %d, want -1", got)
	}
}
