package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrRejected wraps every filter rejection (type, size, missing file).
// Callers answer it with 400; any other error from Save is a storage failure.
var ErrRejected = errors.New("upload rejected")

// PublicPrefix is the URL prefix under which the upload directory is served.
const PublicPrefix = "uploads"

// Policy describes what one upload field accepts and where it is stored.
type Policy struct {
	Field    string // multipart field name, also the filename prefix
	Subdir   string // subdirectory below the upload base ("" for the base)
	MaxBytes int64
	Accept   func(ext, declaredMIME, sniffedMIME string) bool
	Reject   string // message for a type rejection
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".webp": true, ".tif": true, ".tiff": true,
}

// ImagePolicy accepts lesion photos up to 10MB: an image/* MIME type or a bmp
// extension/MIME, with an image extension and image content.
func ImagePolicy() Policy {
	return Policy{
		Field:    "image",
		MaxBytes: 10 << 20,
		Accept: func(ext, declared, sniffed string) bool {
			if !imageExts[ext] {
				return false
			}
			if !strings.HasPrefix(declared, "image/") && ext != ".bmp" && declared != "image/bmp" {
				return false
			}
			return strings.HasPrefix(sniffed, "image/")
		},
		Reject: "Not an image! Please upload only images (including .bmp).",
	}
}

var degreeExts = map[string]bool{".jpeg": true, ".jpg": true, ".png": true, ".pdf": true}

// DegreePolicy accepts degree documents up to 5MB: jpeg, png or pdf by both
// extension and MIME type.
func DegreePolicy() Policy {
	return Policy{
		Field:    "degree",
		Subdir:   "degrees",
		MaxBytes: 5 << 20,
		Accept: func(ext, declared, sniffed string) bool {
			if !degreeExts[ext] {
				return false
			}
			if !strings.Contains(declared, "jpeg") && !strings.Contains(declared, "jpg") &&
				!strings.Contains(declared, "png") && !strings.Contains(declared, "pdf") {
				return false
			}
			switch sniffed {
			case "image/jpeg", "image/png", "application/pdf":
				return true
			}
			return false
		},
		Reject: "Only .jpeg, .jpg, .png, and .pdf files are allowed",
	}
}

// Stored describes a file written to disk.
type Stored struct {
	Name       string // generated file name
	DiskPath   string // path on disk
	PublicPath string // path below the static prefix, e.g. uploads/image-...jpg
	MIME       string // sniffed content type
	Size       int64
}

// Store writes accepted uploads below a base directory.
type Store struct {
	Base string
	now  func() time.Time
}

func NewStore(base string) *Store {
	return &Store{Base: base, now: time.Now}
}

// Validate applies p to fh without writing anything and returns the sniffed
// MIME type.
func (p Policy) Validate(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", fmt.Errorf("%w: file missing", ErrRejected)
	}
	if fh.Size > p.MaxBytes {
		return "", fmt.Errorf("%w: file too large (max %dMB)", ErrRejected, p.MaxBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	sniffed, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("sniff upload: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	declared := strings.ToLower(fh.Header.Get("Content-Type"))
	if !p.Accept(ext, declared, sniffed.String()) {
		slog.Info("upload rejected", "field", p.Field, "filename", fh.Filename, "declared", declared, "sniffed", sniffed.String())
		return "", fmt.Errorf("%w: %s", ErrRejected, p.Reject)
	}
	return sniffed.String(), nil
}

// Save validates fh against p and writes it under a collision-resistant name:
// <field>-<unix millis>-<random>.<ext>.
func (s *Store) Save(fh *multipart.FileHeader, p Policy) (*Stored, error) {
	sniffed, err := p.Validate(fh)
	if err != nil {
		return nil, err
	}
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	return s.write(src, fh.Filename, p, sniffed)
}

// Import copies a local file into the store under p. With no client-declared
// type, the sniffed type is checked in its place.
func (s *Store) Import(srcPath string, p Policy) (*Stored, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", srcPath, err)
	}
	if info.Size() > p.MaxBytes {
		return nil, fmt.Errorf("%w: file too large (max %dMB)", ErrRejected, p.MaxBytes>>20)
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("sniff %s: %w", srcPath, err)
	}
	ext := strings.ToLower(filepath.Ext(srcPath))
	if !p.Accept(ext, mt.String(), mt.String()) {
		return nil, fmt.Errorf("%w: %s", ErrRejected, p.Reject)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", srcPath, err)
	}
	return s.write(f, filepath.Base(srcPath), p, mt.String())
}

func (s *Store) write(src io.Reader, original string, p Policy, sniffed string) (*Stored, error) {
	dir := filepath.Join(s.Base, p.Subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	name := s.uniqueName(p.Field, original)
	diskPath := filepath.Join(dir, name)

	dst, err := os.OpenFile(diskPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", diskPath, err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(diskPath)
		return nil, fmt.Errorf("write %s: %w", diskPath, err)
	}
	return &Stored{
		Name:       name,
		DiskPath:   diskPath,
		PublicPath: path.Join(PublicPrefix, filepath.ToSlash(p.Subdir), name),
		MIME:       sniffed,
		Size:       n,
	}, nil
}

// Remove deletes a stored file; used when the request fails after the write.
func (s *Store) Remove(st *Stored) {
	if st == nil {
		return
	}
	if err := os.Remove(st.DiskPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove upload", "path", st.DiskPath, "error", err)
	}
}

// DiskPath maps a public path (uploads/...) back to its location on disk.
func (s *Store) DiskPath(publicPath string) string {
	rel := strings.TrimPrefix(path.Clean("/"+publicPath), "/"+PublicPrefix)
	return filepath.Join(s.Base, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
}

func (s *Store) uniqueName(field, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s%s", field, s.now().UnixMilli(), suffix, ext)
}
