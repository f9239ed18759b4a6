package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"file-validator-service/internal/logging"
)

// ValidationUploadConfig contains configuration for uploading validation results
type ValidationUploadConfig struct {
	S3    Config
	RunID string
	// Files are the local report files; each is uploaded under its base name
	Files    []string
	Manifest *ValidationManifest
}

// ValidationManifest contains metadata about a validation run
type ValidationManifest struct {
	Timestamp  string            `json:"timestamp"`
	RunID      string            `json:"run_id"`
	FilePath   string            `json:"file_path"`
	SchemaType string            `json:"schema_type"`
	Passed     bool              `json:"passed"`
	Records    int               `json:"records"`
	Failures   int               `json:"failures"`
	Formats    []string          `json:"output_formats,omitempty"`
	Files      map[string]string `json:"files"`
	Manifest   string            `json:"manifest"`
}

// RunPrefix returns the key prefix holding every object of a run
func RunPrefix(runID string) string {
	return fmt.Sprintf("validations/%s", runID)
}

// UploadValidationResults uploads the report files and a JSON manifest under
// validations/<run-id>/. A missing run id is generated.
func UploadValidationResults(config ValidationUploadConfig) (*ValidationManifest, error) {
	log := logging.Component("storage")
	s3Client, err := NewS3Client(config.S3)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	runID := config.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	s3Prefix := RunPrefix(runID)

	manifest := config.Manifest
	if manifest == nil {
		manifest = &ValidationManifest{}
	}
	manifest.RunID = runID
	if manifest.Timestamp == "" {
		manifest.Timestamp = time.Now().Format(time.RFC3339)
	}
	manifest.Files = make(map[string]string, len(config.Files))

	for _, local := range config.Files {
		name := filepath.Base(local)
		s3Key := fmt.Sprintf("%s/%s", s3Prefix, name)
		if err := s3Client.UploadFile(local, s3Key); err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", name, err)
		}
		manifest.Files[name] = s3Key
		log.Info().Str("uri", s3Client.GetS3URI(s3Key)).Msg("uploaded report")
	}

	manifestS3Key := fmt.Sprintf("%s/manifest.json", s3Prefix)
	manifest.Manifest = manifestS3Key
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := s3Client.UploadContent(manifestData, manifestS3Key); err != nil {
		return nil, fmt.Errorf("failed to upload manifest: %w", err)
	}

	log.Info().
		Str("run_id", runID).
		Str("location", s3Client.GetS3URI(s3Prefix)+"/").
		Int("files", len(config.Files)).
		Bool("passed", manifest.Passed).
		Msg("validation package uploaded")
	return manifest, nil
}

// DownloadSchema fetches a schema document from an s3://bucket/key URI. The
// bucket of the URI replaces the configured one; the prefix is not applied.
func DownloadSchema(cfg Config, uri string) ([]byte, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	cfg.Bucket = bucket
	cfg.Prefix = ""
	s3Client, err := NewS3Client(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	data, err := s3Client.DownloadContent(key)
	if err != nil {
		return nil, err
	}
	log := logging.Component("storage")
	log.Debug().Str("uri", uri).Int("bytes", len(data)).Msg("schema downloaded")
	return data, nil
}
