package response

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/pkg/utils"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func TestSuccess(t *testing.T) {
	c, w := newContext()

	Success(c, http.StatusOK, gin.H{"ok": true})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestPaginated(t *testing.T) {
	c, w := newContext()

	Paginated(c, http.StatusOK, []int{1, 2}, utils.CalculateMeta(2, 1, 10))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[1,2],"meta":{"page":1,"limit":10,"totalCount":2,"totalPages":1}}`, w.Body.String())
}

func TestError_AppError(t *testing.T) {
	c, w := newContext()

	Error(c, domainerrors.NotFound("missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), string(domainerrors.KindNotFound))
	assert.Contains(t, w.Body.String(), "missing")
}

func TestError_WrappedSentinel(t *testing.T) {
	c, w := newContext()

	Error(c, fmt.Errorf("tx rejected: %w", domainerrors.ErrLimitExceeded))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"LIMIT_EXCEEDED"`)
}

func TestError_GenericError(t *testing.T) {
	c, w := newContext()

	Error(c, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(domainerrors.KindInternal))
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestErrorWithError(t *testing.T) {
	c, w := newContext()

	ErrorWithError(c, http.StatusBadRequest, "ERR_X", "bad")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"ERR_X"`)
}

func TestAbortWithError(t *testing.T) {
	c, w := newContext()

	AbortWithError(c, domainerrors.Forbidden("nope"))
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
}
