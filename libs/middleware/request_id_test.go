package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	should "github.com/stretchr/testify/assert"

	"github.com/folioshop/storefront/libs/requestutils"
)

func TestRequestIDTransfer(t *testing.T) {
	type testCase struct {
		name   string
		header string
	}

	tests := []testCase{
		{name: "generated"},
		{name: "forwarded", header: "upstream-id"},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := RequestIDTransfer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = requestutils.GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(requestutils.RequestIDHeaderKey, tc.header)
			}
			rw := httptest.NewRecorder()

			h.ServeHTTP(rw, req)

			if tc.header != "" {
				should.Equal(t, tc.header, seen)
			} else {
				should.Len(t, seen, 16)
			}
			should.Equal(t, seen, rw.Header().Get(requestutils.RequestIDHeaderKey))
		})
	}
}
