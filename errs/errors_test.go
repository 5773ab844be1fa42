package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMapping(t *testing.T) {
	cases := []struct {
		kind   Kind
		code   string
		status int
	}{
		{NotFound, "not_found", http.StatusNotFound},
		{Unauthorized, "unauthorized", http.StatusUnauthorized},
		{Forbidden, "forbidden", http.StatusForbidden},
		{InvalidInput, "invalid_input", http.StatusBadRequest},
		{Conflict, "conflict", http.StatusConflict},
		{Internal, "internal", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := New(tc.kind, "boom")
		assert.Equal(t, tc.kind, KindOf(err))
		assert.Equal(t, tc.code, Code(err))
		assert.Equal(t, tc.status, HTTPStatus(err))
	}
}

func TestUnclassifiedErrorsAreInternal(t *testing.T) {
	err := errors.New("sql: connection refused")
	assert.Equal(t, Internal, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Equal(t, "internal server error", Message(err), "storage details must not leak")
}

func TestClassifiedErrorSurvivesWrapping(t *testing.T) {
	inner := New(Conflict, "you have already voted in this poll")
	wrapped := fmt.Errorf("submit: %w", inner)

	assert.Equal(t, Conflict, KindOf(wrapped))
	assert.Equal(t, "conflict", Code(wrapped))
}

func TestMessagePreservedForClientErrors(t *testing.T) {
	err := Newf(InvalidInput, "invalid option %d", 7)
	assert.Equal(t, "invalid option 7", Message(err))
}
