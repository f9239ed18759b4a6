package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"file-validator-service/internal/config"
	"file-validator-service/internal/engine"
	"file-validator-service/internal/formatters"
	"file-validator-service/internal/loaders"
	"file-validator-service/internal/logging"
	"file-validator-service/internal/records"
	"file-validator-service/internal/reporter"
	"file-validator-service/internal/schema"
	"file-validator-service/internal/storage"
	"file-validator-service/internal/store"
)

// ErrValidationFailed is returned when the file did not pass
var ErrValidationFailed = errors.New("validation failed")

var (
	configPath string

	// Input flags
	inputFile  string
	inputType  string
	schemaPath string
	schemaType string
	sheetName  string

	// Validation flags
	storePasses      bool
	logRows          bool
	noExtensionCheck bool

	// Output flags
	outputFormats string
	reportDir     string
	reportName    string

	// S3 flags
	validateS3Upload bool
	validateS3Bucket string
	validateS3Prefix string
	validateS3Region string
	validateS3RunID  string

	// Database flags
	dbEnabled bool
	dbPath    string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a data file against a schema",
	Long: `Validate a CSV, PSV, JSON or Excel file against a JSON or YAML schema.

The file is checked for existence and extension, read, checked for the
declared columns, and then every rule of the schema runs against it. The
summary and detailed reports are written in the requested formats.

Examples:
  # Validate with a text report on stdout
  file-validator validate \
    --file input/contacts.csv \
    --schema input/contacts.json \
    --schema-type CONTACTS

  # Write CSV and Excel reports, publish them to S3 and record the run
  file-validator validate \
    --file input/contacts.csv \
    --schema s3://schemas/contacts.yaml \
    --schema-type CONTACTS \
    --output csv,xlsx --report-dir ./reports \
    --s3-upload --s3-bucket validation-reports \
    --db --db-path ./data/validations.db

The exit status is 1 when the file fails validation.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyValidateFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid options: %w", err)
		}
		logging.Init(cfg.LoggerConfig())

		res, err := runValidate(cmd.Context(), cfg, validateInput{
			File:       inputFile,
			FileType:   inputType,
			Schema:     schemaPath,
			SchemaType: schemaType,
			RunID:      validateS3RunID,
		}, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if !res.Report.Passed {
			return ErrValidationFailed
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: validator.yaml or FV_CONFIG_PATH)")

	validateCmd.Flags().StringVarP(&inputFile, "file", "f", "", "Data file to validate")
	validateCmd.Flags().StringVarP(&inputType, "type", "t", "", "File type: csv, psv, json, xlsx (default: from the extension)")
	validateCmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "Schema document, a local path or an s3:// URI")
	validateCmd.Flags().StringVar(&schemaType, "schema-type", "", "Schema name used in reports (default: the schema file name)")
	validateCmd.Flags().StringVar(&sheetName, "sheet", "", "Excel sheet to read (default: the first sheet)")

	validateCmd.Flags().BoolVar(&storePasses, "store-passes", false, "Record every passed and failed row")
	validateCmd.Flags().BoolVar(&logRows, "log-rows", false, "Record every failed row")
	validateCmd.Flags().BoolVar(&noExtensionCheck, "no-extension-check", false, "Skip the file extension check")

	validateCmd.Flags().StringVarP(&outputFormats, "output", "o", "", "Output formats (comma-separated): text,csv,json,xlsx,html,prometheus")
	validateCmd.Flags().StringVar(&reportDir, "report-dir", "", "Directory for report files")
	validateCmd.Flags().StringVar(&reportName, "report-name", "", "Base name of report files (default: validation-report-<schema type>)")

	validateCmd.Flags().BoolVar(&validateS3Upload, "s3-upload", false, "Upload the reports to S3")
	validateCmd.Flags().StringVar(&validateS3Bucket, "s3-bucket", "", "S3 bucket name")
	validateCmd.Flags().StringVar(&validateS3Prefix, "s3-prefix", "", "S3 key prefix")
	validateCmd.Flags().StringVar(&validateS3Region, "s3-region", "", "AWS region")
	validateCmd.Flags().StringVar(&validateS3RunID, "s3-run-id", "", "Run ID for S3 organization (default: a generated UUID)")

	validateCmd.Flags().BoolVar(&dbEnabled, "db", false, "Record the run in the SQLite database")
	validateCmd.Flags().StringVar(&dbPath, "db-path", "", "SQLite database path")

	_ = validateCmd.MarkFlagRequired("file")
	_ = validateCmd.MarkFlagRequired("schema")
}

// applyValidateFlags lets explicitly set flags win over the loaded config
func applyValidateFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("sheet") {
		cfg.Validation.Sheet = sheetName
	}
	if changed("store-passes") {
		cfg.Validation.StorePasses = storePasses
	}
	if changed("log-rows") {
		cfg.Validation.LogRows = logRows
	}
	if changed("no-extension-check") {
		cfg.Validation.CheckExtension = !noExtensionCheck
	}
	if changed("output") {
		cfg.Report.Formats = parseOutputFormats(outputFormats)
	}
	if changed("report-dir") {
		cfg.Report.Dir = reportDir
	}
	if changed("report-name") {
		cfg.Report.Name = reportName
	}
	if changed("s3-upload") {
		cfg.Storage.Enabled = validateS3Upload
	}
	if changed("s3-bucket") {
		cfg.Storage.Bucket = validateS3Bucket
	}
	if changed("s3-prefix") {
		cfg.Storage.Prefix = validateS3Prefix
	}
	if changed("s3-region") {
		cfg.Storage.Region = validateS3Region
	}
	if changed("db") {
		cfg.Database.Enabled = dbEnabled
	}
	if changed("db-path") {
		cfg.Database.Path = dbPath
	}
}

func parseOutputFormats(s string) []string {
	var formats []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}

type validateInput struct {
	File       string
	FileType   string
	Schema     string
	SchemaType string
	RunID      string
}

type validateResult struct {
	Run      *engine.Run
	Report   *reporter.Report
	Paths    []string
	Manifest *storage.ValidationManifest
	RecordID string
}

// runValidate reads the schema and the file, validates, reports, and
// optionally publishes the reports and records the run
func runValidate(ctx context.Context, cfg *config.Config, in validateInput, stdout io.Writer) (*validateResult, error) {
	log := logging.Component("cli")

	if in.FileType == "" {
		in.FileType = strings.TrimPrefix(strings.ToLower(filepath.Ext(in.File)), ".")
	}
	if in.SchemaType == "" {
		base := filepath.Base(in.Schema)
		in.SchemaType = strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
	}

	var runs *store.Store
	var record *store.ValidationRecord
	if cfg.Database.Enabled {
		var err error
		if runs, err = store.Open(cfg.StoreConfig()); err != nil {
			return nil, err
		}
		defer runs.Close()
		if record, err = runs.Start(ctx, in.SchemaType, in.File); err != nil {
			return nil, err
		}
	}

	compiled, schemaLog, err := loadSchema(cfg, in)
	if err != nil {
		failRecord(ctx, runs, record, schemaLog)
		return nil, err
	}

	validator := engine.NewValidator(engine.Options{
		StorePasses: cfg.Validation.StorePasses,
		LogRows:     cfg.Validation.LogRows,
	})
	run, ds, err := validator.ValidateFile(ctx, in.File, in.FileType, compiled, loaders.Options{
		CheckExtension: cfg.Validation.CheckExtension,
		Sheet:          cfg.Validation.Sheet,
	})
	if err != nil {
		failRecord(ctx, runs, record, schemaLog)
		return nil, err
	}
	run.Log = mergeStreams(schemaLog, run.Log)

	count := 0
	if ds != nil {
		count = ds.Len()
	}
	report := reporter.New().Build(run, reporter.Options{
		FilePath:    in.File,
		FileType:    in.FileType,
		RecordCount: count,
	})

	name := cfg.Report.Name
	if name == "" {
		name = "validation-report-" + in.SchemaType
	}
	paths, writeErr := formatters.Write(report, formatters.Options{
		Dir:     cfg.Report.Dir,
		Name:    name,
		Formats: cfg.Report.Formats,
		Stdout:  stdout,
	})
	if writeErr != nil {
		log.Error().Err(writeErr).Msg("some report formats could not be written")
	}

	res := &validateResult{Run: run, Report: report, Paths: paths}

	if cfg.Storage.Enabled {
		manifest, err := storage.UploadValidationResults(storage.ValidationUploadConfig{
			S3:    cfg.S3Config(),
			RunID: in.RunID,
			Files: paths,
			Manifest: &storage.ValidationManifest{
				FilePath:   in.File,
				SchemaType: in.SchemaType,
				Passed:     report.Passed,
				Records:    count,
				Failures:   report.Detailed.Len(),
				Formats:    cfg.Report.Formats,
			},
		})
		if err != nil {
			failRecord(ctx, runs, record, run.Log)
			return nil, fmt.Errorf("failed to upload results: %w", err)
		}
		res.Manifest = manifest
	}

	if record != nil {
		var err error
		if ds == nil {
			err = runs.Fail(ctx, record.ID, run.Log)
		} else {
			err = runs.Finish(ctx, record.ID, store.Outcome{Logs: run.Log, OutputPath: paths, Report: report})
		}
		if err != nil {
			return nil, err
		}
		res.RecordID = record.ID
	}

	log.Info().
		Str("file", in.File).
		Str("schema_type", in.SchemaType).
		Bool("passed", report.Passed).
		Int("records", count).
		Int("failures", report.Detailed.Len()).
		Msg("validation complete")

	if writeErr != nil {
		return res, fmt.Errorf("failed to write reports: %w", writeErr)
	}
	return res, nil
}

// loadSchema reads the schema document from disk or S3 and compiles it
func loadSchema(cfg *config.Config, in validateInput) (*schema.Schema, *records.Stream, error) {
	var (
		doc *schema.Document
		log *records.Stream
	)
	if storage.IsS3URI(in.Schema) {
		s3Cfg := cfg.S3Config()
		data, err := storage.DownloadSchema(s3Cfg, in.Schema)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to download schema: %w", err)
		}
		_, log, doc = loaders.ParseSchemaDocument(in.Schema, data, nil)
	} else {
		_, log, doc = loaders.ReadSchemaDocument(in.Schema)
	}

	compiled, err := schema.NewCompiler(nil, cfg.Schema).Compile(in.SchemaType, doc)
	if err != nil {
		return nil, log, fmt.Errorf("failed to compile schema %s: %w", in.Schema, err)
	}
	return compiled, log, nil
}

func mergeStreams(streams ...*records.Stream) *records.Stream {
	merged := records.NewStream()
	for _, s := range streams {
		merged.Merge(s)
	}
	return merged
}

func failRecord(ctx context.Context, runs *store.Store, record *store.ValidationRecord, log *records.Stream) {
	if runs == nil || record == nil {
		return
	}
	if err := runs.Fail(ctx, record.ID, log); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record run failure: %v\n", err)
	}
}
