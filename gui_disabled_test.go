//go:build !gui

package main

import (
	"strings"
	"testing"
)

func TestGUIFlagNeedsBuildTag(t *testing.T) {
	path := writeSine(t, 0.3, 1000, 2000)
	code, _, stderr := runCLI(t, "-gui", "-replay", path, "-fast", "-out", t.TempDir())
	if code != 2 {
		t.Errorf("exit = %d, want 2", code)
	}
	if !strings.Contains(stderr, "rebuild with -tags gui") {
		t.Errorf("stderr = %q", stderr)
	}
}
