package service

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	appErrors "github.com/noah-isme/enrollment-pipeline/pkg/errors"
	"github.com/noah-isme/enrollment-pipeline/pkg/storage"
)

type artifactStorage interface {
	Stat(filename string) (os.FileInfo, error)
	Path(filename string) string
}

type linkSigner interface {
	Generate(name, relPath string) (string, time.Time, error)
	Parse(token string) (string, string, time.Time, error)
}

// ArtifactService lists generated pipeline outputs and issues expiring download links for them.
type ArtifactService struct {
	storage artifactStorage
	signer  linkSigner
	paths   map[string]string
	logger  *zap.Logger
}

// NewArtifactService registers the artifact paths a run produces, keyed by their public name.
func NewArtifactService(storage artifactStorage, signer linkSigner, paths []string, logger *zap.Logger) *ArtifactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	known := make(map[string]string, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		known[filepath.Base(p)] = p
	}
	return &ArtifactService{storage: storage, signer: signer, paths: known, logger: logger}
}

// List returns the registered artifacts present on disk with a fresh signed token each.
func (s *ArtifactService) List() ([]models.Artifact, error) {
	names := make([]string, 0, len(s.paths))
	for name := range s.paths {
		names = append(names, name)
	}
	sort.Strings(names)

	artifacts := make([]models.Artifact, 0, len(names))
	for _, name := range names {
		path := s.paths[name]
		info, err := s.storage.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect artifact")
		}
		token, expiresAt, err := s.signer.Generate(name, path)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign artifact link")
		}
		artifacts = append(artifacts, models.Artifact{
			Name:       name,
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC(),
			Token:      token,
			ExpiresAt:  expiresAt.UTC(),
		})
	}
	return artifacts, nil
}

// Resolve validates a download token and returns the file path and download name it grants.
func (s *ArtifactService) Resolve(token string) (string, string, error) {
	name, path, _, err := s.signer.Parse(token)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return "", "", appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	case err != nil:
		return "", "", appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	if registered, ok := s.paths[name]; !ok || registered != path {
		s.logger.Warn("artifact token references unknown file", zap.String("artifact", name))
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "artifact not found")
	}
	if _, err := s.storage.Stat(path); err != nil {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "artifact not found")
	}
	return s.storage.Path(path), name, nil
}
