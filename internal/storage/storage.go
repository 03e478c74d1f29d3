// Package storage lays out uploaded files and split outputs under the data
// directory.
//
//	<root>/split_files/<upload_id>/<source.pdf>
//	<root>/split_files/<upload_id>/split_output/*.pdf
//	<root>/uploaded_files/<collection_id>/<file>
package storage

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	splitDir  = "split_files"
	uploadDir = "uploaded_files"
	outputDir = "split_output"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidName = errors.New("invalid path component")
)

// Store is rooted at the configured data directory.
type Store struct {
	root string
}

func New(root string) (*Store, error) {
	for _, d := range []string{splitDir, uploadDir} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	}
	return &Store{root: root}, nil
}

// Workspace is one split request's directory.
type Workspace struct {
	ID  string
	Dir string
}

// OutputDir is where split sub-documents are written.
func (w Workspace) OutputDir() string {
	return filepath.Join(w.Dir, outputDir)
}

// OutputFile describes one written sub-document.
type OutputFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// NewWorkspace creates the directory for upload id.
func (s *Store) NewWorkspace(id string) (Workspace, error) {
	if err := checkName(id); err != nil {
		return Workspace{}, err
	}
	dir := filepath.Join(s.root, splitDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	return Workspace{ID: id, Dir: dir}, nil
}

// Workspace returns an existing workspace.
func (s *Store) Workspace(id string) (Workspace, error) {
	if err := checkName(id); err != nil {
		return Workspace{}, err
	}
	dir := filepath.Join(s.root, splitDir, id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return Workspace{}, fmt.Errorf("workspace %s: %w", id, ErrNotFound)
		}
		return Workspace{}, err
	}
	return Workspace{ID: id, Dir: dir}, nil
}

// SaveSource copies r into the workspace as filename and returns its path.
func (s *Store) SaveSource(w Workspace, filename string, r io.Reader) (string, error) {
	name := filepath.Base(filename)
	if err := checkName(name); err != nil {
		return "", err
	}
	return writeFile(filepath.Join(w.Dir, name), r)
}

// ListOutputs returns the workspace's split files sorted by name.
func (s *Store) ListOutputs(w Workspace) ([]OutputFile, error) {
	entries, err := os.ReadDir(w.OutputDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []OutputFile{}, nil
		}
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	files := make([]OutputFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, OutputFile{Filename: e.Name(), Size: info.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	return files, nil
}

// OutputPath resolves a split file inside the workspace.
func (s *Store) OutputPath(w Workspace, filename string) (string, error) {
	if err := checkName(filename); err != nil {
		return "", err
	}
	p := filepath.Join(w.OutputDir(), filename)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file %s: %w", filename, ErrNotFound)
		}
		return "", err
	}
	return p, nil
}

// WriteZip streams every split file of the workspace into dst.
func (s *Store) WriteZip(w Workspace, dst io.Writer) error {
	files, err := s.ListOutputs(w)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("outputs of %s: %w", w.ID, ErrNotFound)
	}

	zw := zip.NewWriter(dst)
	for _, f := range files {
		if err := addToZip(zw, filepath.Join(w.OutputDir(), f.Filename), f.Filename); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addToZip(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("zip %s: %w", name, err)
	}
	defer src.Close()
	dst, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("zip %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("zip %s: %w", name, err)
	}
	return nil
}

// RemoveWorkspace deletes the workspace and everything in it.
func (s *Store) RemoveWorkspace(id string) error {
	if err := checkName(id); err != nil {
		return err
	}
	dir := filepath.Join(s.root, splitDir, id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}
	return os.RemoveAll(dir)
}

// SaveUpload stores a file uploaded for indexing under its collection.
func (s *Store) SaveUpload(collectionID, filename string, r io.Reader) (string, error) {
	if err := checkName(collectionID); err != nil {
		return "", err
	}
	name := filepath.Base(filename)
	if err := checkName(name); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, uploadDir, collectionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return writeFile(filepath.Join(dir, name), r)
}

// UploadedFilename returns the most recently stored file name for a
// collection.
func (s *Store) UploadedFilename(collectionID string) (string, error) {
	if err := checkName(collectionID); err != nil {
		return "", err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, uploadDir, collectionID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("collection %s: %w", collectionID, ErrNotFound)
		}
		return "", err
	}
	var (
		name   string
		latest int64
	)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || e.IsDir() {
			continue
		}
		if t := info.ModTime().UnixNano(); name == "" || t >= latest {
			name, latest = e.Name(), t
		}
	}
	if name == "" {
		return "", fmt.Errorf("collection %s: %w", collectionID, ErrNotFound)
	}
	return name, nil
}

// RemoveUploads deletes a collection's stored files. Missing is not an error.
func (s *Store) RemoveUploads(collectionID string) error {
	if err := checkName(collectionID); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.root, uploadDir, collectionID))
}

func writeFile(path string, r io.Reader) (string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
