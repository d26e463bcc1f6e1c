package app

import (
	"fmt"
	"log"
	"strings"

	artifactcache "roadplan/internal/cache/artifact"
	"roadplan/internal/config"
	artifactrepo "roadplan/internal/repository/artifact"
)

// initArtifactStore picks the origin store (S3, Postgres, SQLite or memory,
// in that order of preference) and puts the read cache in front of it.
func initArtifactStore(cfg *config.Config) (artifactrepo.Store, func() error, error) {
	origin, closer, label, err := chooseArtifactOrigin(cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("artifact store: %s", label)
	return artifactcache.NewCachedStore(origin, artifactcache.DefaultCacheConfig()), closer, nil
}

func chooseArtifactOrigin(cfg *config.Config) (artifactrepo.Store, func() error, string, error) {
	noop := func() error { return nil }
	if cfg.Artifact.CanUseS3() {
		s3Store, err := artifactrepo.NewS3Store(artifactrepo.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
		if err != nil {
			return nil, nil, "", fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		return s3Store, noop, fmt.Sprintf("s3 bucket=%s endpoint=%s", cfg.Artifact.Bucket, cfg.Artifact.Endpoint), nil
	}
	if cfg.Artifact.Enabled {
		log.Printf("artifact store: s3 config incomplete, falling back")
	}
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		s, err := artifactrepo.OpenSQLStore(artifactrepo.DialectPostgres, dsn)
		if err != nil {
			return nil, nil, "", fmt.Errorf("failed to open postgres artifact store: %w", err)
		}
		return s, s.Close, "postgres", nil
	}
	if path := strings.TrimSpace(cfg.SQLitePath); path != "" {
		s, err := artifactrepo.OpenSQLStore(artifactrepo.DialectSQLite, path)
		if err != nil {
			return nil, nil, "", fmt.Errorf("failed to open sqlite artifact store: %w", err)
		}
		return s, s.Close, "sqlite path=" + path, nil
	}
	return artifactrepo.NewMemoryStore(), noop, "in-memory", nil
}
