package storage

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bytrustu/sns/internal/apperr"
	"github.com/bytrustu/sns/internal/logging"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoFiles     = apperr.Validation("no_files", "at least one image is required")
	ErrFileTooBig  = apperr.Validation("file_too_large", "image exceeds the upload limit")
	ErrInvalidName = apperr.Validation("invalid_file_name", "image file name is empty")
)

// Provision creates the upload directory when it does not exist yet.
func Provision(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat upload dir %s", dir)
	}
	return errors.Wrapf(os.MkdirAll(dir, 0o755), "create upload dir %s", dir)
}

const maxNameAttempts = 1000

type Service struct {
	dir      string
	maxBytes int64
	now      func() time.Time
	log      *logrus.Logger
}

func NewService(dir string, maxBytes int64, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{dir: dir, maxBytes: maxBytes, now: time.Now, log: logger}
}

func (s *Service) Dir() string {
	return s.dir
}

// FileName returns the stored name for an uploaded file: <base>_<epoch millis><ext>.
func (s *Service) FileName(original string) (string, error) {
	base, ext, err := splitName(original)
	if err != nil {
		return "", err
	}
	return storedName(base, ext, s.now().UnixMilli()), nil
}

func splitName(original string) (string, string, error) {
	original = filepath.Base(original)
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", "", ErrInvalidName
	}
	return base, ext, nil
}

func storedName(base, ext string, millis int64) string {
	return base + "_" + strconv.FormatInt(millis, 10) + ext
}

// Save writes every file into the upload dir and returns the stored names in input order.
// Nothing is written when any file is over the limit.
func (s *Service) Save(files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	for _, fh := range files {
		if s.maxBytes > 0 && fh.Size > s.maxBytes {
			s.log.WithFields(logrus.Fields{"file": fh.Filename, "size": fh.Size}).Warn("upload rejected")
			return nil, ErrFileTooBig
		}
	}

	names := make([]string, 0, len(files))
	for _, fh := range files {
		base, ext, err := splitName(fh.Filename)
		if err != nil {
			return nil, err
		}
		dst, name, err := s.create(base, ext)
		if err != nil {
			return nil, err
		}
		if err := s.write(fh, dst); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	s.log.WithField("files", names).Info("images uploaded")
	return names, nil
}

// create opens a new file that no other upload owns. When the name for the current
// millisecond is taken, the millisecond is bumped until a free name is found.
func (s *Service) create(base, ext string) (*os.File, string, error) {
	millis := s.now().UnixMilli()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := storedName(base, ext, millis+int64(attempt))
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !os.IsExist(err) {
			return nil, "", errors.Wrapf(err, "create %s", path)
		}
	}
	return nil, "", errors.Errorf("no free file name for %s%s", base, ext)
}

func (s *Service) write(fh *multipart.FileHeader, dst *os.File) error {
	src, err := fh.Open()
	if err != nil {
		dst.Close()
		return errors.Wrapf(err, "open upload %s", fh.Filename)
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return errors.Wrapf(err, "write %s", dst.Name())
	}
	return errors.Wrapf(dst.Close(), "close %s", dst.Name())
}
