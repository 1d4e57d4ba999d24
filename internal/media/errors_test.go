package media

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "validation", err: ValidationError("bad"), expected: http.StatusBadRequest},
		{name: "not found", err: NotFoundError("missing"), expected: http.StatusNotFound},
		{name: "bare not found", err: fmt.Errorf("lookup: %w", ErrNotFound), expected: http.StatusNotFound},
		{name: "configuration", err: ConfigurationError("no remote"), expected: http.StatusInternalServerError},
		{name: "backend", err: BackendError("remote", errors.New("boom")), expected: http.StatusBadGateway},
		{name: "io", err: IOError("disk", errors.New("busy")), expected: http.StatusInternalServerError},
		{name: "wrapped backend", err: fmt.Errorf("delete: %w", BackendError("remote", nil)), expected: http.StatusBadGateway},
		{name: "plain", err: errors.New("plain"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusCode(tt.err))
		})
	}
}

func TestError_ShouldUnwrapCause(t *testing.T) {
	// given
	cause := errors.New("connection reset")

	// when
	err := BackendError("Failed to delete media from remote storage", cause)

	// then
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to delete media from remote storage: connection reset", err.Error())
}

func TestPublicMessage_ShouldHideInternalDetails(t *testing.T) {
	assert.Equal(t, "No file uploaded", PublicMessage(ValidationError("No file uploaded"), "fallback"))
	assert.Equal(t, "fallback", PublicMessage(InternalError("insert failed", errors.New("pq: duplicate")), "fallback"))
	assert.Equal(t, "fallback", PublicMessage(errors.New("raw"), "fallback"))
}
