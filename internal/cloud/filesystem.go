package cloud

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"keyhaven/internal/haven"
)

// FileSystemTransport stores records as JSON files under a root directory:
//
//	<root>/
//	  records/
//	    <identity>.json    (identity encoded URL-safe)
//
// Useful for local setups and development; writes are atomic
// (temp file + rename).
type FileSystemTransport struct {
	root       string
	recordsDir string
}

var _ haven.Transport = (*FileSystemTransport)(nil)

// NewFileSystemTransport creates a transport rooted at the given path.
func NewFileSystemTransport(root string) (*FileSystemTransport, error) {
	recordsDir := filepath.Join(root, "records")
	if err := os.MkdirAll(recordsDir, 0700); err != nil {
		return nil, fmt.Errorf("creating records directory: %w", err)
	}
	return &FileSystemTransport{root: root, recordsDir: recordsDir}, nil
}

// recordFile is the on-disk JSON form of a record.
type recordFile struct {
	Identity  string    `json:"identity"`
	Payload   []byte    `json:"payload"`
	Revision  string    `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *FileSystemTransport) recordPath(identity string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(identity))
	return filepath.Join(t.recordsDir, name+".json")
}

// Push writes the record to disk, replacing any previous revision.
func (t *FileSystemTransport) Push(_ context.Context, rec *haven.Record, _ haven.AccessToken) (*haven.Record, error) {
	data, err := json.Marshal(recordFile{
		Identity:  rec.Identity,
		Payload:   rec.Payload,
		Revision:  rec.Revision,
		UpdatedAt: rec.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	if err := t.writeFile(t.recordPath(rec.Identity), data); err != nil {
		return nil, err
	}
	return copyRecord(rec), nil
}

// Pull reads the record for identity, or returns (nil, nil) when absent.
func (t *FileSystemTransport) Pull(_ context.Context, identity string, _ haven.AccessToken) (*haven.Record, error) {
	data, err := os.ReadFile(t.recordPath(identity))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading record: %w", err)
	}

	var rf recordFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &haven.Record{
		Identity:  rf.Identity,
		Payload:   rf.Payload,
		Revision:  rf.Revision,
		UpdatedAt: rf.UpdatedAt,
	}, nil
}

// Delete removes the record for identity.
func (t *FileSystemTransport) Delete(_ context.Context, identity string, _ haven.AccessToken) error {
	path := t.recordPath(identity)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return haven.ErrRecordNotFound
		}
		return fmt.Errorf("checking record: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing record: %w", err)
	}
	return nil
}

// DeleteAll removes every record under the root.
func (t *FileSystemTransport) DeleteAll(_ context.Context, _ haven.AccessToken) error {
	entries, err := os.ReadDir(t.recordsDir)
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(t.recordsDir, e.Name())); err != nil {
			return fmt.Errorf("removing record %s: %w", e.Name(), err)
		}
	}
	return nil
}

// ValidateSetup verifies that the records directory is accessible.
func (t *FileSystemTransport) ValidateSetup() error {
	info, err := os.Stat(t.recordsDir)
	if err != nil {
		return fmt.Errorf("records directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("records path is not a directory: %s", t.recordsDir)
	}
	return nil
}

// writeFile writes data to destPath atomically (temp file + rename).
func (t *FileSystemTransport) writeFile(destPath string, data []byte) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing record: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}
