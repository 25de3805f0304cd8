package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"
)

func TestRequestLogger_LogsPanic(t *testing.T) {
	buffer := &bytes.Buffer{}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: buffer, NoColor: true}).
		With().
		Timestamp().
		Logger()

	ctx := logger.WithContext(context.Background())

	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("panicky handler")
	})

	rw := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)

	router := chi.NewRouter()
	router.Handle("/", RequestLogger(nil)(panicHandler))
	router.ServeHTTP(rw, r)

	actual := buffer.String()

	should.Contains(t, actual, "panic recovered")
	should.Regexp(t, regexp.MustCompile("panic=.+panicky handler"), actual)
	should.Regexp(t, regexp.MustCompile("stacktrace=.+"), actual)

	should.Equal(t, http.StatusInternalServerError, rw.Code)

	var body map[string]interface{}
	must.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	should.Equal(t, "Internal Server Error", body["error"])
}
