package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"
)

type recordedPut struct {
	method      string
	path        string
	contentType string
	auth        string
	token       string
	body        []byte
}

func TestStore_Upload_S3Endpoint(t *testing.T) {
	var (
		mu  sync.Mutex
		got []recordedPut
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)

		mu.Lock()
		got = append(got, recordedPut{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			auth:        r.Header.Get("Authorization"),
			token:       r.Header.Get("X-Amz-Security-Token"),
			body:        b,
		})
		mu.Unlock()

		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := New(Config{ProjectURL: srv.URL + "/", ProjectRef: "projref", AnonKey: "anon"})
	must.NoError(t, err)

	err = store.Upload(context.Background(), "user-token", "user-1/1700000000000.png", strings.NewReader("png-bytes"), "image/png")
	must.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	must.Len(t, got, 1)
	should.Equal(t, http.MethodPut, got[0].method)
	should.Equal(t, "/storage/v1/s3/avatars/user-1/1700000000000.png", got[0].path)
	should.Equal(t, "image/png", got[0].contentType)
	should.Contains(t, got[0].auth, "Credential=projref/")
	should.Equal(t, "user-token", got[0].token)
	should.Equal(t, []byte("png-bytes"), got[0].body)
}

func TestNew(t *testing.T) {
	type tcGiven struct {
		cfg Config
	}

	type tcExpected struct {
		ref    string
		bucket string
		region string
		err    bool
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	tests := []testCase{
		{
			name:  "derives_ref_from_host",
			given: tcGiven{cfg: Config{ProjectURL: "https://abcdef.supabase.co", AnonKey: "anon"}},
			exp:   tcExpected{ref: "abcdef", bucket: DefaultBucket, region: DefaultRegion},
		},

		{
			name:  "explicit_values",
			given: tcGiven{cfg: Config{ProjectURL: "https://abcdef.supabase.co", ProjectRef: "other", Region: "ap-south-1", Bucket: "media"}},
			exp:   tcExpected{ref: "other", bucket: "media", region: "ap-south-1"},
		},

		{
			name:  "invalid_url",
			given: tcGiven{cfg: Config{ProjectURL: "not a url"}},
			exp:   tcExpected{err: true},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			actual, err := New(tc.given.cfg)
			if tc.exp.err {
				should.Error(t, err)
				return
			}

			must.NoError(t, err)
			should.Equal(t, tc.exp.ref, actual.cfg.ProjectRef)
			should.Equal(t, tc.exp.bucket, actual.Bucket())
			should.Equal(t, tc.exp.region, actual.cfg.Region)
		})
	}
}

type mockPutObjectAPI struct {
	fnPutObject func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error)
}

func (m *mockPutObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.fnPutObject == nil {
		return &s3.PutObjectOutput{}, nil
	}

	return m.fnPutObject(ctx, params)
}

func TestStore_Upload(t *testing.T) {
	type tcGiven struct {
		key  string
		body []byte
		ct   string
		api  *mockPutObjectAPI
	}

	type tcExpected struct {
		err error
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	errPut := errors.New("put failed")

	tests := []testCase{
		{
			name: "empty_key",
			given: tcGiven{
				body: []byte("x"),
				api:  &mockPutObjectAPI{},
			},
			exp: tcExpected{err: ErrEmptyKey},
		},

		{
			name: "too_large",
			given: tcGiven{
				key:  "u/1.png",
				body: bytes.Repeat([]byte("a"), MaxObjectSize+1),
				api:  &mockPutObjectAPI{},
			},
			exp: tcExpected{err: ErrObjectTooLarge},
		},

		{
			name: "put_error",
			given: tcGiven{
				key:  "u/1.png",
				body: []byte("x"),
				api: &mockPutObjectAPI{
					fnPutObject: func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
						return nil, errPut
					},
				},
			},
			exp: tcExpected{err: errPut},
		},

		{
			name: "default_content_type",
			given: tcGiven{
				key:  "u/1",
				body: []byte("x"),
				api: &mockPutObjectAPI{
					fnPutObject: func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
						if aws.ToString(params.ContentType) != "application/octet-stream" {
							return nil, errors.New("unexpected content type")
						}

						if aws.ToString(params.Bucket) != DefaultBucket {
							return nil, errors.New("unexpected bucket")
						}

						return &s3.PutObjectOutput{}, nil
					},
				},
			},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			store := NewWithAPI(Config{ProjectURL: "https://abcdef.supabase.co"}, tc.given.api)

			err := store.Upload(context.Background(), "token", tc.given.key, bytes.NewReader(tc.given.body), tc.given.ct)
			should.ErrorIs(t, err, tc.exp.err)
		})
	}
}

func TestStore_PublicURL(t *testing.T) {
	store := NewWithAPI(Config{ProjectURL: "https://abcdef.supabase.co/"}, &mockPutObjectAPI{})

	should.Equal(t, "https://abcdef.supabase.co/storage/v1/object/public/avatars/u/1.png", store.PublicURL("u/1.png"))
}
