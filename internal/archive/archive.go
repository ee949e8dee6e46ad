// Package archive packs finished episode directories into cbz or zip files.
package archive

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"comicdl/internal/config"
	"comicdl/internal/fileutil"
	"comicdl/internal/services"
)

// ComicInfoName is the metadata entry comic readers look for.
const ComicInfoName = "ComicInfo.xml"

// ComicInfo is the subset of the ComicRack schema the downloader fills in.
type ComicInfo struct {
	XMLName   xml.Name `xml:"ComicInfo"`
	Series    string   `xml:"Series"`
	Title     string   `xml:"Title"`
	Number    string   `xml:"Number,omitempty"`
	Writer    string   `xml:"Writer,omitempty"`
	Genre     string   `xml:"Genre,omitempty"`
	PageCount int      `xml:"PageCount"`
	Manga     string   `xml:"Manga"`
}

// Path returns where an episode directory is packed for format.
func Path(episodeDir, format string) string {
	if format == config.ArchiveImage || format == "" {
		return episodeDir
	}
	return episodeDir + "." + format
}

// Existing reports the first finished form of an episode found on disk: the
// plain directory or one of the archives.
func Existing(episodeDir string) (string, bool) {
	for _, candidate := range []string{episodeDir, Path(episodeDir, config.ArchiveCBZ), Path(episodeDir, config.ArchiveZip)} {
		if fileutil.Exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Pack writes episodeDir into an archive next to it and removes the directory.
// The image format leaves the directory untouched and returns it.
func Pack(ctx context.Context, episodeDir, format string, info ComicInfo) (string, error) {
	switch format {
	case config.ArchiveImage, "":
		return episodeDir, nil
	case config.ArchiveCBZ, config.ArchiveZip:
	default:
		return "", services.Wrap(services.ErrConfiguration, "archive", "pack", fmt.Sprintf("unsupported archive format %q", format), nil)
	}

	pages, err := pageFiles(episodeDir)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "archive", "list pages", episodeDir, err)
	}
	if len(pages) == 0 {
		return "", services.Wrap(services.ErrValidation, "archive", "pack", "no pages in "+episodeDir, nil)
	}
	info.PageCount = len(pages)
	if info.Manga == "" {
		info.Manga = "YesAndRightToLeft"
	}

	target := Path(episodeDir, format)
	tmp := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".part")
	if err := writeArchive(ctx, tmp, episodeDir, pages, info); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := fileutil.ReplaceFile(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", services.Wrap(services.ErrTransient, "archive", "move archive", target, err)
	}
	if err := os.RemoveAll(episodeDir); err != nil {
		return target, services.Wrap(services.ErrTransient, "archive", "remove episode dir", episodeDir, err)
	}
	return target, nil
}

func writeArchive(ctx context.Context, path, dir string, pages []string, info ComicInfo) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrTransient, "archive", "create", path, err)
	}
	defer func() {
		if closeErr := out.Close(); err == nil && closeErr != nil {
			err = services.Wrap(services.ErrTransient, "archive", "close", path, closeErr)
		}
	}()

	zw := zip.NewWriter(out)
	meta, err := zw.CreateHeader(&zip.FileHeader{Name: ComicInfoName, Method: zip.Deflate})
	if err != nil {
		return services.Wrap(services.ErrTransient, "archive", "write metadata", path, err)
	}
	if _, err := io.WriteString(meta, xml.Header); err != nil {
		return services.Wrap(services.ErrTransient, "archive", "write metadata", path, err)
	}
	enc := xml.NewEncoder(meta)
	enc.Indent("", "  ")
	if err := enc.Encode(info); err != nil {
		return services.Wrap(services.ErrTransient, "archive", "encode metadata", path, err)
	}

	for _, name := range pages {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCancelled, "archive", "pack", "archiving cancelled", err)
		}
		if err := addFile(zw, filepath.Join(dir, name), name); err != nil {
			return services.Wrap(services.ErrTransient, "archive", "add page", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return services.Wrap(services.ErrTransient, "archive", "finish", path, err)
	}
	return nil
}

// addFile stores a page without recompressing it; images are already compressed.
func addFile(zw *zip.Writer, src, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Store
	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

func pageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") || strings.EqualFold(name, ComicInfoName) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
