// Package avatar stores user-uploaded profile images on local disk.
package avatar

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mychat/internal/apperr"
	"github.com/sirupsen/logrus"
)

const (
	// MaxSize is the largest accepted upload, in bytes.
	MaxSize = 5 << 20

	// PublicPrefix is the URL path avatars are served under.
	PublicPrefix = "/uploads/avatars/"
)

var (
	allowedExtensions = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	}
	allowedContentTypes = map[string]struct{}{
		"image/jpeg": {}, "image/jpg": {}, "image/png": {}, "image/gif": {},
	}
)

// File is an uploaded image as received from the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

type Service struct {
	dir    string
	logger *logrus.Logger
}

// NewService stores avatars under root/uploads/avatars.
func NewService(root string, logger *logrus.Logger) *Service {
	return &Service{
		dir:    filepath.Join(root, "uploads", "avatars"),
		logger: logger,
	}
}

// Dir is the directory uploaded files are written to.
func (s *Service) Dir() string { return s.dir }

// Validate reports whether f is an acceptable avatar image.
func (s *Service) Validate(f *File) bool {
	return validate(f) == nil
}

func validate(f *File) error {
	if f == nil || f.Content == nil {
		return errors.New("no file provided")
	}
	if f.Size <= 0 {
		return errors.New("file is empty")
	}
	if f.Size > MaxSize {
		return fmt.Errorf("file exceeds %d bytes", MaxSize)
	}
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(f.Name))]; !ok {
		return errors.New("file extension must be one of .jpg, .jpeg, .png, .gif")
	}
	if _, ok := allowedContentTypes[strings.ToLower(f.ContentType)]; !ok {
		return errors.New("content type must be an image (jpeg, png, gif)")
	}
	return nil
}

// Upload writes f under a generated name and returns its public path.
func (s *Service) Upload(f *File, userID string) (string, error) {
	if err := validate(f); err != nil {
		return "", apperr.WithDetails(apperr.Wrap(apperr.InvalidArgument, err, "invalid avatar image"), err.Error())
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "failed to prepare avatar storage")
	}

	name := userID + "_" + uuid.NewString() + strings.ToLower(filepath.Ext(f.Name))
	dst := filepath.Join(s.dir, name)
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "failed to store avatar")
	}

	// read at most one byte past the limit so a lying Size is still caught
	n, err := io.Copy(out, io.LimitReader(f.Content, MaxSize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxSize {
		err = apperr.WithDetails(apperr.Invalidf("invalid avatar image"), fmt.Sprintf("file exceeds %d bytes", MaxSize))
	}
	if err != nil {
		_ = os.Remove(dst)
		if apperr.KindOf(err) == apperr.InvalidArgument {
			return "", err
		}
		return "", apperr.Wrap(apperr.Internal, err, "failed to store avatar")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"file":    name,
		"bytes":   n,
	}).Info("avatar uploaded")
	return PublicPrefix + name, nil
}

// Delete removes the file behind a public avatar path. Missing files and
// storage errors are logged, never returned.
func (s *Service) Delete(publicPath string) {
	if publicPath == "" {
		return
	}
	name := path.Base(publicPath)
	if !strings.HasPrefix(publicPath, PublicPrefix) || name == "." || name == "/" {
		s.logger.WithField("path", publicPath).Warn("refusing to delete avatar outside upload directory")
		return
	}

	err := os.Remove(filepath.Join(s.dir, name))
	switch {
	case err == nil:
		s.logger.WithField("file", name).Info("avatar deleted")
	case errors.Is(err, os.ErrNotExist):
	default:
		s.logger.WithError(err).WithField("file", name).Warn("failed to delete avatar")
	}
}
