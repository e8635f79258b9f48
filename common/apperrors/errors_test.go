package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAndCodeOf(t *testing.T) {
	err := New(DuplicateBranchName, "branch %s already exists", "feature")

	assert.True(t, Is(err, DuplicateBranchName))
	assert.False(t, Is(err, MergeConflict))
	assert.Equal(t, DuplicateBranchName, CodeOf(err))
	assert.Contains(t, err.Error(), "feature")
}

func TestCodeSurvivesWrapping(t *testing.T) {
	inner := New(RecordNotFound, "application missing")
	wrapped := fmt.Errorf("loading lineage: %w", inner)

	assert.True(t, Is(wrapped, RecordNotFound))
	assert.Equal(t, RecordNotFound, CodeOf(wrapped))
}

func TestActionFailedKeepsCause(t *testing.T) {
	cause := errors.New("exit status 128")
	err := ActionFailed("checkout", cause)

	assert.True(t, Is(err, GitActionFailed))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "git checkout failed")
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.False(t, Is(errors.New("plain"), GitActionFailed))
	assert.False(t, Is(nil, GitActionFailed))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		InvalidParameter:          http.StatusBadRequest,
		UnsupportedRemoteBranch:   http.StatusBadRequest,
		RecordNotFound:            http.StatusNotFound,
		DuplicateBranchName:       http.StatusConflict,
		GitApplicationLimit:       http.StatusForbidden,
		InvalidGitConfiguration:   http.StatusUnprocessableEntity,
		MergeConflict:             http.StatusUnprocessableEntity,
		MergeBlockedRemoteChanges: http.StatusUnprocessableEntity,
		TransportFailure:          http.StatusBadGateway,
		GitActionFailed:           http.StatusBadGateway,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(New(code, "x")), "code %s", code)
	}

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("unknown")))
}
