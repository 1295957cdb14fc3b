package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsSentinel(t *testing.T) {
	wrapped := Wrap(ErrTargetNotFound, "table people")

	assert.Contains(t, wrapped.Error(), "table people")
	assert.True(t, Is(wrapped, ErrTargetNotFound))
	assert.False(t, Is(wrapped, ErrAssetConflict))
}

func TestWithHint(t *testing.T) {
	err := WithHint(ErrTargetNotFound, "set --create-if-missing")

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "set --create-if-missing", hints[0])
}

func TestStackTrace(t *testing.T) {
	err := New("with stack")

	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.Nil(t, NewBackendError("calendar", 404, nil))
}

func TestBackendError(t *testing.T) {
	base := New("notFound")
	err := Wrap(NewBackendError("calendar", http.StatusNotFound, base), "list events")

	var be *BackendError
	require.True(t, As(err, &be))
	assert.Equal(t, "calendar", be.Backend)
	assert.Equal(t, http.StatusNotFound, be.StatusCode)
	assert.True(t, Is(err, base))
	assert.Contains(t, err.Error(), "calendar: notFound")
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"backend status wins", Mark(NewBackendError("postgres", http.StatusForbidden, New("denied")), ErrConnection), http.StatusForbidden},
		{"target not found", Wrap(ErrTargetNotFound, "x"), http.StatusNotFound},
		{"asset conflict", ErrAssetConflict, http.StatusConflict},
		{"data conflict", Wrap(ErrDataConflict, "x"), http.StatusConflict},
		{"missing key field", Wrapf(ErrMissingKeyField, "record %d", 2), http.StatusBadRequest},
		{"invalid request", NewInvalidRequestError("bad %s", "key"), http.StatusBadRequest},
		{"unsupported", NewUnsupportedError("replace"), http.StatusNotImplemented},
		{"connection", WrapConnection(New("dial tcp"), "open"), http.StatusServiceUnavailable},
		{"unknown", New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsUnsupported(NewUnsupportedError("replace is not implemented")))
	assert.False(t, IsUnsupported(nil))
	assert.True(t, IsConnectionError(WrapConnection(New("refused"), "ping")))
	assert.False(t, IsConnectionError(New("refused")))
}

func ExampleWrap() {
	err := Wrap(ErrTargetNotFound, "calendar primary")
	fmt.Println(err)
	// Output: calendar primary: target not found
}
