package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	// Set a deterministic HOME for the duration of this test so we never skip.
	origHome, hadHome := os.LookupEnv("HOME")
	origUserProfile, hadUserProfile := os.LookupEnv("USERPROFILE")
	t.Cleanup(func() {
		if hadHome {
			_ = os.Setenv("HOME", origHome)
		} else {
			_ = os.Unsetenv("HOME")
		}
		if hadUserProfile {
			_ = os.Setenv("USERPROFILE", origUserProfile)
		} else {
			_ = os.Unsetenv("USERPROFILE")
		}
	})

	home := t.TempDir()
	// Configure both env vars for cross-platform behavior of os.UserHomeDir.
	_ = os.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		_ = os.Setenv("USERPROFILE", home)
	}
	// raw path unaffected
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// empty path
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// ~ expansion
	p, err := ExpandHome("~")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p != home {
		t.Fatalf("expected %q, got %q", home, p)
	}
	// ~/subdir
	sub := "test-sub"
	exp, err := ExpandHome("~/" + sub)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if runtime.GOOS == "windows" {
		if filepath.Base(exp) != sub {
			t.Fatalf("unexpected expanded path: %q", exp)
		}
	} else {
		expected := filepath.Join(home, sub)
		if exp != expected {
			t.Fatalf("expected %q, got %q", expected, exp)
		}
	}
}

func TestSizeMB(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "weights.onnx")
	if err := os.WriteFile(p, make([]byte, 3*1024*1024), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := SizeMB(p); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	// missing file clamps to 1
	if got := SizeMB(filepath.Join(dir, "absent")); got != 1 {
		t.Fatalf("expected 1 for missing file, got %d", got)
	}
	// small file clamps to 1
	small := filepath.Join(dir, "small.onnx")
	if err := os.WriteFile(small, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := SizeMB(small); got != 1 {
		t.Fatalf("expected 1 for small file, got %d", got)
	}
}
