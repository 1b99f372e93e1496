package logx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	assert.Equal(t, "192.168.1.0", anonymizeIP("192.168.1.77:5123"))
	assert.Equal(t, "10.0.0.0", anonymizeIP("10.0.0.9"))
	assert.Equal(t, "127.0.0.1", anonymizeIP("127.0.0.1:80"))
	assert.Equal(t, "2001:db8:85a3:8d3::", anonymizeIP("[2001:db8:85a3:8d3:1319:8a2e:370:7348]:443"))
	assert.Equal(t, "unknown_ip", anonymizeIP("not-an-ip"))
}

func TestRequestLogger_InjectsContextLogger(t *testing.T) {
	var fromCtx *zerolog.Logger
	h := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = zerolog.Ctx(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/active", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	if assert.NotNil(t, fromCtx) {
		assert.NotEqual(t, zerolog.Disabled, fromCtx.GetLevel())
	}
}
