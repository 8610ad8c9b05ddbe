package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name    string
		appErr  *AppError
		want    string
	}{
		{
			name: "with cause",
			appErr: &AppError{
				Type:    ErrTypeParsing,
				Message: "failed to read survey sheet",
				Cause:   errors.New("unexpected EOF"),
			},
			want: "[PARSING] failed to read survey sheet: unexpected EOF",
		},
		{
			name: "without cause",
			appErr: &AppError{
				Type:    ErrTypeValidation,
				Message: "depth column missing",
			},
			want: "[VALIDATION] depth column missing",
		},
		{
			name: "analysis error",
			appErr: &AppError{
				Type:    ErrTypeAnalysis,
				Message: "depth analysis failed",
				Cause:   errors.New("empty dataset"),
			},
			want: "[ANALYSIS] depth analysis failed: empty dataset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("file locked")
	appErr := NewStorageError("cannot write report", cause)

	assert.True(t, errors.Is(appErr, cause))

	wrapped := fmt.Errorf("report stage: %w", appErr)
	var target *AppError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, ErrTypeStorage, target.Type)
}

func TestAppError_WithContext(t *testing.T) {
	appErr := NewParsingError("bad row", nil).
		WithContext("file", "survey.xlsx").
		WithContext("row", 42)

	assert.Equal(t, "survey.xlsx", appErr.Context["file"])
	assert.Equal(t, 42, appErr.Context["row"])

	// WithContext on a nil map allocates one.
	bare := &AppError{Type: ErrTypeConfig, Message: "missing key"}
	bare.WithContext("key", "target_depth")
	assert.Equal(t, "target_depth", bare.Context["key"])
}

func TestAppErrorConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		appErr   *AppError
		wantType ErrorType
		wantMsg  string
	}{
		{
			name:     "parsing",
			appErr:   NewParsingError("cannot parse", cause),
			wantType: ErrTypeParsing,
			wantMsg:  "cannot parse",
		},
		{
			name:     "storage",
			appErr:   NewStorageError("cannot store", cause),
			wantType: ErrTypeStorage,
			wantMsg:  "cannot store",
		},
		{
			name:     "validation",
			appErr:   NewAppValidationError("invalid input"),
			wantType: ErrTypeValidation,
			wantMsg:  "invalid input",
		},
		{
			name:     "not found",
			appErr:   NewNotFoundError("cable EXC-09"),
			wantType: ErrTypeNotFound,
			wantMsg:  "cable EXC-09 not found",
		},
		{
			name:     "permission",
			appErr:   NewPermissionError("output dir is read-only"),
			wantType: ErrTypePermission,
			wantMsg:  "output dir is read-only",
		},
		{
			name:     "config",
			appErr:   NewConfigError("bad yaml", cause),
			wantType: ErrTypeConfig,
			wantMsg:  "bad yaml",
		},
		{
			name:     "analysis",
			appErr:   NewAnalysisError("window larger than dataset", nil),
			wantType: ErrTypeAnalysis,
			wantMsg:  "window larger than dataset",
		},
		{
			name:     "render",
			appErr:   NewRenderError("snapshot timed out", cause),
			wantType: ErrTypeRender,
			wantMsg:  "snapshot timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.appErr)
			assert.Equal(t, tt.wantType, tt.appErr.Type)
			assert.Equal(t, tt.wantMsg, tt.appErr.Message)
			assert.NotNil(t, tt.appErr.Context)
		})
	}
}
