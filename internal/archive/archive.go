// Package archive persists session records as newline-delimited JSON, one
// file per day. Files are only ever appended to.
package archive

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"linefixer/internal/logging"
)

const (
	filePrefix = "session-"
	fileSuffix = ".ndjson"
	dateLayout = "20060102"

	// maxRecordSize bounds a single line for the reader.
	maxRecordSize = 16 << 20
)

// Archive appends session records under a directory.
type Archive struct {
	mu  sync.Mutex
	dir string
	log *zap.Logger
}

// New creates an archive rooted at dir. Nothing is created until the first
// Append.
func New(dir string) *Archive {
	return &Archive{dir: dir, log: logging.Get(logging.CategoryArchive)}
}

// Dir returns the archive directory.
func (a *Archive) Dir() string { return a.dir }

// PathFor returns the file that holds records started on t's date.
func (a *Archive) PathFor(t time.Time) string {
	return filepath.Join(a.dir, filePrefix+t.Format(dateLayout)+fileSuffix)
}

// Append writes rec as one line to the file for rec.StartedAt's date. The
// whole line goes out in a single write followed by fsync. If the file's
// last record was cut short, a newline is written first so the new record
// starts on its own line.
func (a *Archive) Append(rec Record) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session record: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	path := a.PathFor(rec.StartedAt)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	torn, err := endsWithoutNewline(f)
	if err != nil {
		return "", fmt.Errorf("failed to inspect archive: %w", err)
	}
	if torn {
		a.log.Warn("archive ends with a partial record; starting a new line", zap.String("path", path))
		data = append([]byte{'\n'}, data...)
	}

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("failed to append session record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync archive: %w", err)
	}
	a.log.Debug("session archived", zap.String("path", path), zap.String("session", rec.SessionID))
	return path, nil
}

func endsWithoutNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	var last [1]byte
	if _, err := f.ReadAt(last[:], info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// Files lists the archive files, oldest first. A missing directory yields
// no files.
func (a *Archive) Files() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		out = append(out, filepath.Join(a.dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// ReadResult is what the tolerant reader recovered from a file.
type ReadResult struct {
	Records []Record
	Corrupt int // lines that did not decode
}

// ReadFile reads every decodable record from path. Blank lines are ignored
// and undecodable lines are counted, never fatal.
func ReadFile(path string) (ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReadResult{}, err
	}
	defer f.Close()
	return Read(f)
}

// Read decodes records from r with the same tolerance as ReadFile.
func Read(r io.Reader) (ReadResult, error) {
	var res ReadResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			res.Corrupt++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// ReadAll reads every archive file, oldest first.
func (a *Archive) ReadAll() (ReadResult, error) {
	files, err := a.Files()
	if err != nil {
		return ReadResult{}, err
	}
	var all ReadResult
	for _, path := range files {
		res, err := ReadFile(path)
		if err != nil {
			return all, fmt.Errorf("failed to read %s: %w", path, err)
		}
		all.Records = append(all.Records, res.Records...)
		all.Corrupt += res.Corrupt
	}
	return all, nil
}
