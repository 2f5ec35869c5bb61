package build

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// ArchiveSuffix is appended to the data directory name for the compressed
// export archive.
const ArchiveSuffix = ".tar.lz4"

// ArchiveDir packs dir into an LZ4-compressed tar archive next to it and
// returns the archive path. The directory itself is left in place; the
// caller decides whether to remove it.
func ArchiveDir(dir string) (string, error) {
	archivePath := dir + ArchiveSuffix

	out, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, stagedFileMode)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}

	lzWriter := lz4.NewWriter(out)
	tarWriter := tar.NewWriter(lzWriter)

	walkErr := addTreeToTar(tarWriter, dir)

	// Close order matters: tar trailer, then lz4 frame, then the file.
	closeErr := tarWriter.Close()
	if walkErr == nil {
		walkErr = closeErr
	}

	closeErr = lzWriter.Close()
	if walkErr == nil {
		walkErr = closeErr
	}

	closeErr = out.Close()
	if walkErr == nil {
		walkErr = closeErr
	}

	if walkErr != nil {
		_ = os.Remove(archivePath)

		return "", fmt.Errorf("write archive %s: %w", archivePath, walkErr)
	}

	return archivePath, nil
}

// addTreeToTar writes every regular file under root into the tar stream,
// with paths relative to root's parent so the archive unpacks into one
// top-level directory.
func addTreeToTar(tw *tar.Writer, root string) error {
	base := filepath.Base(root)

	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		name := filepath.ToSlash(filepath.Join(base, rel))

		info, infoErr := entry.Info()
		if infoErr != nil {
			return infoErr
		}

		header, headerErr := tar.FileInfoHeader(info, "")
		if headerErr != nil {
			return headerErr
		}

		header.Name = name

		writeErr := tw.WriteHeader(header)
		if writeErr != nil {
			return writeErr
		}

		if entry.IsDir() {
			return nil
		}

		f, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}

		_, copyErr := io.Copy(tw, f)

		closeErr := f.Close()
		if copyErr != nil {
			return copyErr
		}

		return closeErr
	})
}
