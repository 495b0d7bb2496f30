// Package upload stores user images on local disk and hands back their
// public URL.
package upload

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/pkg/errors"
)

// PathPrefix is where stored files are served from.
const PathPrefix = "/uploads/"

var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type Store struct {
	Dir      string
	BaseURL  string
	MaxBytes int64
}

// Save sniffs the content type, writes the file under a generated name and
// returns its public URL. Anything but jpeg, png, webp or gif is rejected,
// as is a body larger than MaxBytes.
func (s Store) Save(r io.Reader) (string, error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "read upload")
	}
	head = head[:n]
	if n == 0 {
		return "", apperr.Validation("file is empty")
	}
	ext, ok := allowed[mimetype.Detect(head).String()]
	if !ok {
		return "", apperr.Validation("only jpeg, png, webp and gif images are accepted")
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create upload dir")
	}
	name := uuid.NewString() + ext
	path := filepath.Join(s.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create upload file")
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	written, err := io.Copy(f, io.LimitReader(body, s.MaxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > s.MaxBytes {
		err = apperr.Validation("file exceeds %d bytes", s.MaxBytes)
	}
	if err != nil {
		_ = os.Remove(path)
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return "", err
		}
		return "", errors.Wrap(err, "write upload")
	}
	return s.BaseURL + PathPrefix + name, nil
}
