package services

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"supermart-analytics/internal/logger"
)

// DefaultArchiveExtensions are the project file types included in an archive.
var DefaultArchiveExtensions = []string{".go", ".csv", ".db", ".gob", ".json", ".html", ".css", ".svg"}

// BackupService copies project files aside and packages the project as a zip.
type BackupService struct {
	log *logger.Logger
}

// NewBackupService バックアップサービスを作成
func NewBackupService(log *logger.Logger) *BackupService {
	return &BackupService{log: log.With("service", "BackupService")}
}

// Backup copies each existing file into dir as "<basename>.bak".
// Missing files are skipped. It returns the backup paths written.
func (s *BackupService) Backup(files []string, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, src := range files {
		info, err := os.Stat(src)
		if err != nil || info.IsDir() {
			s.log.Debug("backup skipped", "file", src)
			continue
		}
		dst := filepath.Join(dir, filepath.Base(src)+".bak")
		if err := copyFile(src, dst, info.Mode()); err != nil {
			return written, fmt.Errorf("backup %s: %w", src, err)
		}
		written = append(written, dst)
	}
	s.log.Info("backup complete", "dir", dir, "files", len(written))
	return written, nil
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Zip archives every file under root with one of exts into out, skipping
// hidden and "_"-prefixed directories, the skip directories and the archive itself.
// Entry names are slash-separated paths relative to root.
func (s *BackupService) Zip(root, out string, exts []string, skip ...string) (int, error) {
	if len(exts) == 0 {
		exts = DefaultArchiveExtensions
	}
	absOut, _ := filepath.Abs(out)
	skipDirs := map[string]bool{}
	for _, d := range skip {
		if abs, err := filepath.Abs(d); err == nil {
			skipDirs[abs] = true
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	zw := zip.NewWriter(f)
	count := 0
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		abs, _ := filepath.Abs(path)
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || skipDirs[abs]) {
				return filepath.SkipDir
			}
			return nil
		}
		if abs == absOut || !hasExtension(d.Name(), exts) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if err := addZipEntry(zw, path, filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("zip %s: %w", rel, err)
		}
		count++
		return nil
	})
	if cerr := zw.Close(); walkErr == nil {
		walkErr = cerr
	}
	if cerr := f.Close(); walkErr == nil {
		walkErr = cerr
	}
	if walkErr != nil {
		return count, walkErr
	}
	s.log.Info("archive written", "path", out, "files", count)
	return count, nil
}

func addZipEntry(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
