package ingest

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Member is one seed file read from a source.
type Member struct {
	Name string
	Data []byte
}

// Source yields seed files. Walk calls fn once per member, in a stable order,
// and stops at the first error.
type Source interface {
	Walk(ctx context.Context, fn func(Member) error) error
	String() string
}

// FileSource is a single seed file.
type FileSource struct{ Path string }

func (s FileSource) String() string { return s.Path }

func (s FileSource) Walk(ctx context.Context, fn func(Member) error) error {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	return fn(Member{Name: filepath.Base(s.Path), Data: data})
}

// DirSource is a directory holding one *.json file per seed.
type DirSource struct{ Path string }

func (s DirSource) String() string { return s.Path }

func (s DirSource) Walk(ctx context.Context, fn func(Member) error) error {
	matches, err := filepath.Glob(filepath.Join(s.Path, "*.json"))
	if err != nil {
		return fmt.Errorf("listing %s: %w", s.Path, err)
	}
	sort.Strings(matches)
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := (FileSource{Path: path}).Walk(ctx, fn); err != nil {
			return err
		}
	}
	return nil
}

// ArchiveSource is a tar archive, optionally gzip-compressed, bundling many
// seed files. Members not ending in .json are ignored.
type ArchiveSource struct{ Path string }

func (s ArchiveSource) String() string { return s.Path }

func (s ArchiveSource) Walk(ctx context.Context, fn func(Member) error) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()
	if err := walkArchive(ctx, f, fn); err != nil {
		return fmt.Errorf("archive %s: %w", s.Path, err)
	}
	return nil
}

// walkArchive reads a tar stream, detecting gzip by its magic bytes.
func walkArchive(ctx context.Context, r io.Reader, fn func(Member) error) error {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	var stream io.Reader = br
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return err
		}
		defer gz.Close()
		stream = gz
	}

	tr := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, ".json") {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("reading member %s: %w", hdr.Name, err)
		}
		if err := fn(Member{Name: hdr.Name, Data: data}); err != nil {
			return err
		}
	}
}

func isArchive(name string) bool {
	return strings.HasSuffix(name, ".tar") || strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz")
}

// OpenSource resolves a command-line input into a Source: an s3:// URL, a
// directory, an archive, or a single seed file.
func OpenSource(ctx context.Context, input string, s3cfg S3Config) (Source, error) {
	if strings.HasPrefix(input, "s3://") {
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(input, "s3://"), "/")
		s3cfg.Bucket = bucket
		s3cfg.Prefix = prefix
		return NewS3Source(ctx, s3cfg)
	}
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	switch {
	case info.IsDir():
		return DirSource{Path: input}, nil
	case isArchive(input):
		return ArchiveSource{Path: input}, nil
	default:
		return FileSource{Path: input}, nil
	}
}
