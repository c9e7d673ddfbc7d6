package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAppErrorResponseCarriesStatus(t *testing.T) {
	c, rec := echoContext(t, http.MethodGet, "/api/state", "")

	err := AppErrorResponse(c, InternalError("state read failed", fmt.Errorf("redis gone")))
	require.NoError(t, err)

	resp := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)

	b, _ := json.Marshal(resp.Data)
	assert.Contains(t, string(b), "state read failed")
	assert.NotContains(t, string(b), "redis gone")
}

func TestAppErrorResponsePlainErrorBecomes500(t *testing.T) {
	c, rec := echoContext(t, http.MethodGet, "/api/state", "")

	require.NoError(t, AppErrorResponse(c, fmt.Errorf("boom")))
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
}

func TestInternalErrorUnwraps(t *testing.T) {
	cause := fmt.Errorf("dial tcp refused")
	err := InternalError("queue publish failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "queue publish failed")
}

type pairRequest struct {
	Pair string `json:"pair" validate:"required,len=6,alphanum"`
}

func TestReadAndValidateRequestReportsFieldErrors(t *testing.T) {
	c, _ := echoContext(t, http.MethodPost, "/api/pair", `{"pair":"EUR"}`)

	verr := ReadAndValidateRequest(c, &pairRequest{})
	require.NotNil(t, verr)

	errs, ok := verr.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_LEN", errs[0].Code)
	assert.Equal(t, "Pair", errs[0].Field)
	assert.Contains(t, errs[0].Message, "exactly 6")
	assert.Equal(t, "6", errs[0].Params["length"])
}

func TestReadAndValidateRequestPassesValidBody(t *testing.T) {
	c, _ := echoContext(t, http.MethodPost, "/api/pair", `{"pair":"EURUSD"}`)

	req := &pairRequest{}
	require.Nil(t, ReadAndValidateRequest(c, req))
	assert.Equal(t, "EURUSD", req.Pair)
}
