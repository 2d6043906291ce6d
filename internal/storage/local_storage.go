package storage

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LocalStorage is the on-disk record store: one JSON document per profile
// under exposures/, plus profiles/ and snapshots/ for vault-adjacent data.
// Writes are atomic (temp file + rename) so a crash never leaves a
// half-written exposure set.
type LocalStorage struct {
	baseDir     string
	logger      *logrus.Logger
	mu          sync.RWMutex
	compression bool
	retention   time.Duration
}

func NewLocalStorage(baseDir string, compression bool, retention time.Duration, logger *logrus.Logger) (*LocalStorage, error) {
	if logger == nil {
		logger = logrus.New()
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	for _, dir := range []string{"exposures", "profiles", "snapshots", "temp"} {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	ls := &LocalStorage{
		baseDir:     baseDir,
		logger:      logger,
		compression: compression,
		retention:   retention,
	}

	if retention > 0 {
		go ls.cleanupOldFiles()
	}

	return ls, nil
}

// SaveDocument writes v as JSON under <kind>/<name>.json atomically.
func (ls *LocalStorage) SaveDocument(kind, name string, v interface{}) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	dir := filepath.Join(ls.baseDir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	finalPath := filepath.Join(dir, sanitizeName(name)+".json")
	tmpFile, err := os.CreateTemp(dir, ".doc_*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	enc := json.NewEncoder(tmpFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("encode document: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), finalPath); err != nil {
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("atomic rename: %w", err)
	}

	if ls.compression {
		if err := ls.compressFile(finalPath); err != nil {
			ls.logger.Warnf("Failed to compress %s: %v", finalPath, err)
		} else {
			_ = os.Remove(finalPath)
		}
	}

	return nil
}

// LoadDocument reads <kind>/<name>.json (or its gzipped form) into v.
// Returns os.ErrNotExist when no document has been saved.
func (ls *LocalStorage) LoadDocument(kind, name string, v interface{}) error {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	base := filepath.Join(ls.baseDir, kind, sanitizeName(name)+".json")

	var reader io.ReadCloser
	if f, err := os.Open(base); err == nil {
		reader = f
	} else if gz, gzErr := os.Open(base + ".gz"); gzErr == nil {
		zr, zErr := gzip.NewReader(gz)
		if zErr != nil {
			gz.Close()
			return fmt.Errorf("gzip reader: %w", zErr)
		}
		reader = struct {
			io.Reader
			io.Closer
		}{zr, gz}
	} else {
		return os.ErrNotExist
	}
	defer reader.Close()

	if err := json.NewDecoder(reader).Decode(v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// ListDocuments returns the document names stored under kind.
func (ls *LocalStorage) ListDocuments(kind string) ([]string, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(ls.baseDir, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s directory: %w", kind, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		name = strings.TrimSuffix(name, ".gz")
		if !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	return names, nil
}

func (ls *LocalStorage) compressFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func (ls *LocalStorage) cleanupOldFiles() {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-ls.retention)
		for _, kind := range []string{"snapshots", "temp"} {
			dir := filepath.Join(ls.baseDir, kind)
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				info, err := e.Info()
				if err != nil || info.IsDir() {
					continue
				}
				if info.ModTime().Before(cutoff) {
					if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
						ls.logger.Warnf("Failed to remove expired file %s: %v", e.Name(), err)
					}
				}
			}
		}
	}
}

func sanitizeName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	return replacer.Replace(name)
}
