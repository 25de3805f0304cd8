package account

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"

	"github.com/folioshop/storefront/libs/clients/gotrue"
	errorutils "github.com/folioshop/storefront/libs/errors"
)

type mockObjectStore struct {
	fnUpload func(ctx context.Context, accessToken, key string, body io.Reader, contentType string) error
}

func (m *mockObjectStore) Upload(ctx context.Context, accessToken, key string, body io.Reader, contentType string) error {
	if m.fnUpload == nil {
		return nil
	}

	return m.fnUpload(ctx, accessToken, key, body, contentType)
}

func (m *mockObjectStore) PublicURL(key string) string {
	return "https://project.supabase.test/storage/v1/object/public/avatars/" + key
}

func TestAvatarExt(t *testing.T) {
	tests := []struct {
		given string
		exp   string
	}{
		{given: "me.png", exp: "png"},
		{given: "me.final.JPEG", exp: "JPEG"},
		{given: "avatar", exp: "avatar"},
		{given: "trailing.", exp: ""},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.given, func(t *testing.T) {
			should.Equal(t, tc.exp, AvatarExt(tc.given))
		})
	}
}

func TestAvatarPath(t *testing.T) {
	at := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	should.Equal(t, "user-1/1709294400000.png", AvatarPath("user-1", at, "png"))
}

func TestService_NotSignedIn(t *testing.T) {
	sc := NewSessionContext(&mockProvider{})
	must.NoError(t, sc.Start(context.Background(), ""))
	defer func() { _ = sc.Close() }()

	svc := NewService(sc, &mockObjectStore{})

	_, err := svc.UpdateName(context.Background(), "Name")
	should.ErrorIs(t, err, ErrNotSignedIn)

	should.ErrorIs(t, svc.UpdatePassword(context.Background(), "secret1"), ErrNotSignedIn)

	_, err = svc.UploadAvatar(context.Background(), "me.png", strings.NewReader("x"))
	should.ErrorIs(t, err, ErrNotSignedIn)
}

func TestService_UpdateName(t *testing.T) {
	type tcGiven struct {
		fn func(ctx context.Context, accessToken string, attrs gotrue.UserAttributes) (*gotrue.User, error)
	}

	type tcExpected struct {
		err  error
		msg  string
		name string
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	tests := []testCase{
		{
			name: "success",
			given: tcGiven{
				fn: func(ctx context.Context, accessToken string, attrs gotrue.UserAttributes) (*gotrue.User, error) {
					if accessToken != "at-1" || attrs.Data == nil || attrs.Password != "" {
						return nil, errors.New("unexpected attributes")
					}

					return &gotrue.User{ID: "user-1", UserMetadata: *attrs.Data}, nil
				},
			},
			exp: tcExpected{name: "New Name"},
		},

		{
			name: "provider_error",
			given: tcGiven{
				fn: func(ctx context.Context, accessToken string, attrs gotrue.UserAttributes) (*gotrue.User, error) {
					return nil, &gotrue.APIError{Status: http.StatusUnauthorized, Message: "JWT expired"}
				},
			},
			exp: tcExpected{err: errorutils.ErrUpstream, msg: "Error updating name: JWT expired", name: "You"},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			p := &mockProvider{fnUpdateUser: tc.given.fn}
			sc := startedContext(t, p)
			svc := NewService(sc, &mockObjectStore{})

			_, err := svc.UpdateName(context.Background(), " New Name ")
			should.ErrorIs(t, err, tc.exp.err)

			if tc.exp.msg != "" {
				should.Equal(t, tc.exp.msg, errorutils.MessageOf(err))
			}

			should.Equal(t, tc.exp.name, sc.User().UserMetadata.FullName)
		})
	}
}

func TestService_UpdatePassword(t *testing.T) {
	type tcGiven struct {
		password string
		fn       func(ctx context.Context, accessToken string, attrs gotrue.UserAttributes) (*gotrue.User, error)
	}

	type tcExpected struct {
		err error
		msg string
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	ok := func(ctx context.Context, accessToken string, attrs gotrue.UserAttributes) (*gotrue.User, error) {
		if attrs.Password == "" || attrs.Data != nil {
			return nil, errors.New("unexpected attributes")
		}

		return newTestSession(accessToken).User, nil
	}

	tests := []testCase{
		{
			name:  "empty",
			given: tcGiven{fn: ok},
			exp:   tcExpected{err: errorutils.ErrInvalidArgument, msg: "Password cannot be empty."},
		},

		{
			name:  "too_short",
			given: tcGiven{password: "12345", fn: ok},
			exp:   tcExpected{err: errorutils.ErrInvalidArgument, msg: "Password must be at least 6 characters."},
		},

		{
			name:  "minimum_length",
			given: tcGiven{password: "123456", fn: ok},
		},

		{
			name: "provider_error",
			given: tcGiven{
				password: "123456",
				fn: func(ctx context.Context, accessToken string, attrs gotrue.UserAttributes) (*gotrue.User, error) {
					return nil, &gotrue.APIError{Status: http.StatusUnprocessableEntity, Message: "New password should be different from the old password."}
				},
			},
			exp: tcExpected{
				err: errorutils.ErrUpstream,
				msg: "Error updating password: New password should be different from the old password.",
			},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			sc := startedContext(t, &mockProvider{fnUpdateUser: tc.given.fn})
			svc := NewService(sc, &mockObjectStore{})

			err := svc.UpdatePassword(context.Background(), tc.given.password)
			should.ErrorIs(t, err, tc.exp.err)

			if tc.exp.msg != "" {
				should.Equal(t, tc.exp.msg, errorutils.MessageOf(err))
			}
		})
	}
}

func TestService_UploadAvatar(t *testing.T) {
	at := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	expURL := "https://project.supabase.test/storage/v1/object/public/avatars/user-1/1709294400000.png"

	type tcGiven struct {
		upload func(ctx context.Context, accessToken, key string, body io.Reader, contentType string) error
		update func(ctx context.Context, accessToken string, attrs gotrue.UserAttributes) (*gotrue.User, error)
	}

	type tcExpected struct {
		url    string
		err    error
		msg    string
		avatar string
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	update := func(ctx context.Context, accessToken string, attrs gotrue.UserAttributes) (*gotrue.User, error) {
		if attrs.Data == nil || attrs.Data.FullName != "You" {
			return nil, errors.New("full name was not kept")
		}

		return &gotrue.User{ID: "user-1", UserMetadata: *attrs.Data}, nil
	}

	tests := []testCase{
		{
			name: "success",
			given: tcGiven{
				upload: func(ctx context.Context, accessToken, key string, body io.Reader, contentType string) error {
					b, _ := io.ReadAll(body)
					if accessToken != "at-1" || key != "user-1/1709294400000.png" || contentType != "image/png" || string(b) != "png" {
						return errors.New("unexpected upload")
					}

					return nil
				},
				update: update,
			},
			exp: tcExpected{url: expURL, avatar: expURL},
		},

		{
			name: "upload_error",
			given: tcGiven{
				upload: func(ctx context.Context, accessToken, key string, body io.Reader, contentType string) error {
					return errors.New("error putting object: AccessDenied")
				},
				update: update,
			},
			exp: tcExpected{err: errorutils.ErrUpstream, msg: "Error uploading avatar: error putting object: AccessDenied"},
		},

		{
			name: "update_error",
			given: tcGiven{
				update: func(ctx context.Context, accessToken string, attrs gotrue.UserAttributes) (*gotrue.User, error) {
					return nil, &gotrue.APIError{Status: http.StatusInternalServerError, Message: "Database error"}
				},
			},
			exp: tcExpected{err: errorutils.ErrUpstream, msg: "Error updating profile: Database error"},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			sc := startedContext(t, &mockProvider{fnUpdateUser: tc.given.update})

			svc := NewService(sc, &mockObjectStore{fnUpload: tc.given.upload})
			svc.now = func() time.Time { return at }

			actual, err := svc.UploadAvatar(context.Background(), "me.png", strings.NewReader("png"))
			should.ErrorIs(t, err, tc.exp.err)
			should.Equal(t, tc.exp.url, actual)

			if tc.exp.msg != "" {
				should.Equal(t, tc.exp.msg, errorutils.MessageOf(err))
			}

			should.Equal(t, tc.exp.avatar, sc.User().UserMetadata.AvatarURL)
		})
	}
}
