package account

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/folioshop/storefront/libs/clients/gotrue"
	errorutils "github.com/folioshop/storefront/libs/errors"
	"github.com/folioshop/storefront/libs/logging"
)

const (
	minPasswordLength   = 6
	msgPasswordTooShort = "Password must be at least 6 characters."

	// MsgNameUpdated is shown after a successful name change.
	MsgNameUpdated = "Name updated successfully!"
	// MsgPasswordUpdated is shown after a successful password change.
	MsgPasswordUpdated = "Password updated successfully!"
	// MsgProfileUpdated is shown after a successful avatar change.
	MsgProfileUpdated = "Profile updated successfully!"
)

var profileUpdates = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "account_profile_updates_total",
		Help: "Count of profile updates by field and result",
	},
	[]string{"field", "result"},
)

type objectStore interface {
	Upload(ctx context.Context, accessToken, key string, body io.Reader, contentType string) error
	PublicURL(key string) string
}

// Service manages the profile of the user signed in to a SessionContext.
type Service struct {
	sessions *SessionContext
	store    objectStore
	now      func() time.Time
}

// NewService returns a profile service for the user of sessions, storing avatars in store.
func NewService(sessions *SessionContext, store objectStore) *Service {
	return &Service{
		sessions: sessions,
		store:    store,
		now:      time.Now,
	}
}

// UpdateName sets the full name of the signed in user.
func (s *Service) UpdateName(ctx context.Context, name string) (*gotrue.User, error) {
	snap, err := s.signedIn()
	if err != nil {
		return nil, err
	}

	user, err := s.sessions.provider.UpdateUser(ctx, snap.Session.AccessToken, gotrue.UserAttributes{
		Data: &gotrue.UserMetadata{FullName: strings.TrimSpace(name)},
	})
	if err != nil {
		profileUpdates.WithLabelValues("name", "error").Inc()
		return nil, updateFault("Error updating name: ", err)
	}

	profileUpdates.WithLabelValues("name", "ok").Inc()

	return user, nil
}

// UpdatePassword sets a new password for the signed in user.
func (s *Service) UpdatePassword(ctx context.Context, password string) error {
	snap, err := s.signedIn()
	if err != nil {
		return err
	}

	if password == "" {
		return errorutils.NewFault(errorutils.ErrInvalidArgument, msgPasswordRequired, nil)
	}

	if len(password) < minPasswordLength {
		return errorutils.NewFault(errorutils.ErrInvalidArgument, msgPasswordTooShort, nil)
	}

	if _, err := s.sessions.provider.UpdateUser(ctx, snap.Session.AccessToken, gotrue.UserAttributes{Password: password}); err != nil {
		profileUpdates.WithLabelValues("password", "error").Inc()
		return updateFault("Error updating password: ", err)
	}

	profileUpdates.WithLabelValues("password", "ok").Inc()

	return nil
}

// UploadAvatar stores body as the avatar of the signed in user and returns its public url.
func (s *Service) UploadAvatar(ctx context.Context, filename string, body io.Reader) (string, error) {
	logger := logging.Logger(ctx, "account.Service.UploadAvatar")

	snap, err := s.signedIn()
	if err != nil {
		return "", err
	}

	ext := AvatarExt(filename)
	key := AvatarPath(snap.User.ID, s.now(), ext)

	if err := s.store.Upload(ctx, snap.Session.AccessToken, key, body, mime.TypeByExtension("."+ext)); err != nil {
		profileUpdates.WithLabelValues("avatar", "error").Inc()
		logger.Error().Err(err).Str("key", key).Msg("failed to upload avatar")
		return "", updateFault("Error uploading avatar: ", err)
	}

	publicURL := s.store.PublicURL(key)

	_, err = s.sessions.provider.UpdateUser(ctx, snap.Session.AccessToken, gotrue.UserAttributes{
		Data: &gotrue.UserMetadata{
			AvatarURL: publicURL,
			FullName:  snap.User.UserMetadata.FullName,
		},
	})
	if err != nil {
		profileUpdates.WithLabelValues("avatar", "error").Inc()
		return "", updateFault("Error updating profile: ", err)
	}

	profileUpdates.WithLabelValues("avatar", "ok").Inc()

	return publicURL, nil
}

func (s *Service) signedIn() (Snapshot, error) {
	snap := s.sessions.Snapshot()
	if snap.User == nil || snap.Session == nil {
		return Snapshot{}, ErrNotSignedIn
	}

	return snap, nil
}

// AvatarExt returns the text after the last dot of filename, or filename when it has none.
func AvatarExt(filename string) string {
	return filename[strings.LastIndex(filename, ".")+1:]
}

// AvatarPath returns the object key of an avatar uploaded by userID at t.
func AvatarPath(userID string, t time.Time, ext string) string {
	return fmt.Sprintf("%s/%d.%s", userID, t.UnixMilli(), ext)
}

func updateFault(prefix string, err error) error {
	return errorutils.NewFault(errorutils.ErrUpstream, prefix+errorutils.MessageOf(err), err)
}
