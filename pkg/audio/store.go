package audio

import (
	"VoiceBridge/pkg/s3"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const ContentTypeMP3 = "audio/mpeg"

// PublicPath is where the local store's directory is mounted over HTTP.
const PublicPath = "/audio"

var ErrInvalidName = errors.New("invalid audio file name")

type IAudioStore interface {
	Save(ctx context.Context, name string, audio []byte) (string, error)
	URL(ctx context.Context, name string) (string, error)
	Exists(ctx context.Context, name string) bool
	Delete(ctx context.Context, name string) error
	TempPath(name string) string
}

// LocalStore keeps audio in a directory served under PublicPath.
type LocalStore struct {
	dir     string
	baseURL string
	log     *logrus.Logger
}

func NewLocalStore(dir string, baseURL string, log *logrus.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Save(ctx context.Context, name string, audio []byte) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), audio, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return s.URL(ctx, name)
}

func (s *LocalStore) URL(_ context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s/%s", s.baseURL, PublicPath, name), nil
}

func (s *LocalStore) Exists(_ context.Context, name string) bool {
	if validateName(name) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStore) TempPath(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// S3Store uploads audio to a bucket and hands out presigned URLs.
type S3Store struct {
	client  s3.ItfS3
	tempDir string
	log     *logrus.Logger
}

func NewS3Store(client s3.ItfS3, tempDir string, log *logrus.Logger) (*S3Store, error) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &S3Store{client: client, tempDir: tempDir, log: log}, nil
}

func (s *S3Store) Save(ctx context.Context, name string, audio []byte) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return s.client.UploadFile(ctx, name, ContentTypeMP3, audio)
}

func (s *S3Store) URL(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return s.client.PresignUrl(ctx, name)
}

func (s *S3Store) Exists(ctx context.Context, name string) bool {
	if validateName(name) != nil {
		return false
	}
	return s.client.Exists(ctx, name)
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	return s.client.DeleteFile(ctx, name)
}

func (s *S3Store) TempPath(name string) string {
	return filepath.Join(s.tempDir, filepath.Base(name))
}

func validateName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}
