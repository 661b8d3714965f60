package build

import "testing"

func TestString(t *testing.T) {
	v, c := Version, Commit
	t.Cleanup(func() { Version, Commit = v, c })

	Version, Commit = "v1.2.0", "abc1234"
	if got, want := String(), "carnet v1.2.0 (abc1234)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
