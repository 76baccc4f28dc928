package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery provides workbook discovery operations
type Discovery struct {
	basePath     string
	outputSuffix string
}

// NewDiscovery creates a new file discovery instance. Files whose stem
// ends in outputSuffix are treated as previous outputs and skipped.
func NewDiscovery(basePath, outputSuffix string) *Discovery {
	return &Discovery{basePath: basePath, outputSuffix: outputSuffix}
}

// FindExcelFiles finds all Excel files in the specified directory,
// sorted by name for deterministic batch ordering.
func (d *Discovery) FindExcelFiles(dir string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if fi, ok := d.excelInfo(fullPath, entry); ok {
			files = append(files, fi)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// FindExcelFilesRecursive walks the directory tree under dir and
// returns every Excel file found, sorted by path.
func (d *Discovery) FindExcelFilesRecursive(dir string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)

	var files []FileInfo
	err := filepath.WalkDir(fullPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if fi, ok := d.excelInfo(filepath.Dir(path), entry); ok {
			files = append(files, fi)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", fullPath, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

// FindFilesByPattern finds files matching a glob pattern relative to dir
func (d *Discovery) FindFilesByPattern(dir, pattern string) ([]FileInfo, error) {
	searchPattern := filepath.Join(d.resolve(dir), pattern)

	matches, err := filepath.Glob(searchPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}

	var files []FileInfo
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if d.isOutput(filepath.Base(match)) {
			continue
		}
		files = append(files, FileInfo{
			Path:    match,
			Name:    filepath.Base(match),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) || d.basePath == "" {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}

func (d *Discovery) excelInfo(dir string, entry fs.DirEntry) (FileInfo, bool) {
	name := entry.Name()
	if !IsExcelFile(name) {
		return FileInfo{}, false
	}
	// Temporary lock files Excel leaves behind while a workbook is open.
	if strings.HasPrefix(name, "~$") {
		return FileInfo{}, false
	}
	if d.isOutput(name) {
		return FileInfo{}, false
	}
	info, err := entry.Info()
	if err != nil {
		return FileInfo{}, false
	}
	return FileInfo{
		Path:    filepath.Join(dir, name),
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, true
}

func (d *Discovery) isOutput(name string) bool {
	if d.outputSuffix == "" {
		return false
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(stem, d.outputSuffix)
}

// IsExcelFile reports whether the file name has a workbook extension
func IsExcelFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
		return true
	}
	return false
}
