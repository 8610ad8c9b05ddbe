package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SurveyExtensions lists the file extensions the survey loader accepts.
var SurveyExtensions = []string{".csv", ".xlsx"}

// FileValidator checks survey inputs and report destinations before an
// analysis starts, so setup problems surface up front instead of as
// mid-pipeline failures.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateSurveyFile checks that path names a readable regular file
// with an extension the loader understands.
func (v *FileValidator) ValidateSurveyFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range SurveyExtensions {
		if ext == allowed {
			return nil
		}
	}
	v.logger.Error("unsupported survey file extension",
		slog.String("file", path),
		slog.String("extension", ext))
	return fmt.Errorf("unsupported survey file type %q, want one of %s",
		ext, strings.Join(SurveyExtensions, ", "))
}

// ValidateFile checks that path exists, is a regular file and is
// readable by the current process.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("survey file does not exist", slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("survey path is a directory", slog.String("path", path))
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		v.logger.Error("survey file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	f.Close()

	v.logger.Debug("survey file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory ensures the report directory exists, creating
// it when missing, and verifies it is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	f.Close()
	os.Remove(testFile)

	return nil
}

// SanitizeFilename strips any directory component and replaces path
// separators so an uploaded filename can never escape its destination
// directory. An empty or dot-only name becomes "survey".
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "survey"
	}
	return name
}
