package iox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubCloser struct {
	closed bool
	err    error
}

func (s *stubCloser) Close() error {
	s.closed = true
	return s.err
}

func TestDiscardClose(t *testing.T) {
	c := &stubCloser{err: errors.New("close failed")}
	DiscardClose(c)
	if !c.closed {
		t.Error("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	c := &stubCloser{}
	fn := CloseFunc(c)
	if c.closed {
		t.Fatal("Close called before fn invoked")
	}
	fn()
	if !c.closed {
		t.Error("Close was not called")
	}
}

func TestDiscardErr(t *testing.T) {
	called := false
	DiscardErr(func() error {
		called = true
		return errors.New("ignored")
	})
	if !called {
		t.Error("fn was not called")
	}
}

func TestRemoveIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := RemoveIfExists(path); err != nil {
		t.Errorf("missing file: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RemoveIfExists(path); err != nil {
		t.Fatalf("RemoveIfExists: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still exists")
	}
}

func TestAppendLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log")
	for _, l := range []string{"a=1", "b=2"} {
		if err := AppendLine(path, l); err != nil {
			t.Fatalf("AppendLine: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a=1\nb=2\n" {
		t.Errorf("content = %q", data)
	}
}
