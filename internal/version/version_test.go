package version

import "testing"

func TestString(t *testing.T) {
	origVersion, origSHA := Version, GitSHA
	t.Cleanup(func() { Version, GitSHA = origVersion, origSHA })

	Version = "1.2.0"
	GitSHA = "4f9c2d1"
	if got := String(); got != "1.2.0 (4f9c2d1)" {
		t.Errorf("String() = %q, want %q", got, "1.2.0 (4f9c2d1)")
	}
}
