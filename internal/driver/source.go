package driver

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// source is a text file split into lines with its terminator style.
type source struct {
	lines           []string
	eol             string // "\n" or "\r\n", detected from the first line
	trailingNewline bool
	mode            fs.FileMode
}

func readSource(path string) (*source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src := parseSource(data)
	src.mode = info.Mode().Perm()
	return src, nil
}

func parseSource(data []byte) *source {
	src := &source{eol: "\n"}
	if i := bytes.IndexByte(data, '\n'); i > 0 && data[i-1] == '\r' {
		src.eol = "\r\n"
	}
	if len(data) == 0 {
		return src
	}

	text := string(data)
	if strings.HasSuffix(text, "\n") {
		src.trailingNewline = true
		text = strings.TrimSuffix(text, "\n")
		if src.eol == "\r\n" {
			text = strings.TrimSuffix(text, "\r")
		}
	}
	src.lines = strings.Split(text, "\n")
	if src.eol == "\r\n" {
		for i, l := range src.lines {
			src.lines[i] = strings.TrimSuffix(l, "\r")
		}
	}
	return src
}

// render joins lines with the detected terminator.
func (s *source) render(lines []string) []byte {
	var b bytes.Buffer
	for i, l := range lines {
		if i > 0 {
			b.WriteString(s.eol)
		}
		b.WriteString(l)
	}
	if s.trailingNewline && len(lines) > 0 {
		b.WriteString(s.eol)
	}
	return b.Bytes()
}

// writeFileAtomic replaces path with data via <path>.tmp in the same
// directory: write, fsync, rename. On any error the temp file is removed and
// the original is untouched.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) (err error) {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = f.Chmod(perm); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	syncDir(filepath.Dir(path))
	return nil
}

// syncDir flushes the directory entry after a rename. Best effort: not every
// platform supports fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
