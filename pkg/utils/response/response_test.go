package response

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/eurodetective/pkg/utils/errors"
)

func TestSuccess(t *testing.T) {
	r := Success(map[string]string{"answer": "ok"})
	assert.True(t, r.IsSuccess())
	assert.Equal(t, http.StatusOK, r.HTTPStatus())
	assert.NotZero(t, r.Timestamp)
}

func TestErrFromErrno(t *testing.T) {
	r := Err(errors.ErrAgentValidation.WithCause(stderrors.New("query is empty")))
	assert.False(t, r.IsSuccess())
	assert.Equal(t, errors.ErrAgentValidation.Code, r.Code)
	assert.Equal(t, http.StatusBadRequest, r.HTTPStatus())
	assert.NotContains(t, r.Message, "query is empty")
}

func TestErrFromPlainError(t *testing.T) {
	r := Err(stderrors.New("boom"))
	assert.Equal(t, errors.ErrInternal.Code, r.Code)
	assert.Equal(t, http.StatusInternalServerError, r.HTTPStatus())
}

func TestHTTPStatusLookup(t *testing.T) {
	r := &Response{Code: errors.ErrAgentSessionNotFound.Code}
	assert.Equal(t, http.StatusNotFound, r.HTTPStatus())

	r = &Response{Code: 9999999}
	assert.Equal(t, http.StatusInternalServerError, r.HTTPStatus())

	assert.Equal(t, "req-1", Success(nil).WithRequestID("req-1").RequestID)
}
