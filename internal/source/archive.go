package source

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strings"
)

// archiveKind identifies how an archive is opened.
type archiveKind int

const (
	notArchive archiveKind = iota
	kindTar
	kindTarGzip
	kindTarBzip2
	kindZip
)

// archiveSuffixes maps file name suffixes to archive kinds. Longer suffixes
// come first so ".tar.gz" wins over ".gz".
var archiveSuffixes = []struct {
	suffix string
	kind   archiveKind
}{
	{".tar.gz", kindTarGzip},
	{".tar.bz2", kindTarBzip2},
	{".tgz", kindTarGzip},
	{".tar", kindTar},
	{".zip", kindZip},
	{".whl", kindZip},
}

// archiveKindOf returns the archive kind for name, or notArchive.
func archiveKindOf(name string) archiveKind {
	lower := strings.ToLower(name)
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.kind
		}
	}
	return notArchive
}

// IsArchive reports whether name has a supported archive suffix.
func IsArchive(name string) bool {
	return archiveKindOf(name) != notArchive
}

// memberFunc receives each regular archive member. data is nil when the
// member exceeds the size limit.
type memberFunc func(name string, size int64, data []byte)

// readArchive calls fn for every regular member accepted by want.
func readArchive(file string, maxSize int64, want func(string) bool, fn memberFunc) error {
	f, err := os.Open(file) //nolint:gosec // Paths come from the user's command line
	if err != nil {
		return err
	}
	defer f.Close()

	switch archiveKindOf(file) {
	case kindTar:
		return readTar(f, maxSize, want, fn)
	case kindTarGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()
		return readTar(zr, maxSize, want, fn)
	case kindTarBzip2:
		return readTar(bzip2.NewReader(f), maxSize, want, fn)
	case kindZip:
		info, err := f.Stat()
		if err != nil {
			return err
		}
		return readZip(f, info.Size(), maxSize, want, fn)
	default:
		return ErrUnsupportedArchive
	}
}

func readTar(r io.Reader, maxSize int64, want func(string) bool, fn memberFunc) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := cleanMember(hdr.Name)
		if !want(name) {
			continue
		}
		if maxSize > 0 && hdr.Size > maxSize {
			fn(name, hdr.Size, nil)
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		fn(name, hdr.Size, buf.Bytes())
	}
}

func readZip(r io.ReaderAt, size, maxSize int64, want func(string) bool, fn memberFunc) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name := cleanMember(zf.Name)
		if !want(name) {
			continue
		}
		memberSize := int64(math.MaxInt64)
		if zf.UncompressedSize64 < math.MaxInt64 {
			memberSize = int64(zf.UncompressedSize64)
		}
		if memberSize == math.MaxInt64 || (maxSize > 0 && memberSize > maxSize) {
			fn(name, memberSize, nil)
			continue
		}
		data, err := readZipFile(zf)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		fn(name, int64(len(data)), data)
	}
	return nil
}

func readZipFile(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// cleanMember normalizes a member name to a relative slash path.
func cleanMember(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}
