// Package accountcli signs customers in and manages their profile from a terminal.
package accountcli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/folioshop/storefront/cmd"
	"github.com/folioshop/storefront/libs/clients/gotrue"
	errorutils "github.com/folioshop/storefront/libs/errors"
	"github.com/folioshop/storefront/libs/logging"
	"github.com/folioshop/storefront/libs/prompt"
	"github.com/folioshop/storefront/services/account"
	"github.com/folioshop/storefront/services/account/storage"
)

var (
	// AccountCmd groups the account subcommands
	AccountCmd = &cobra.Command{
		Use:   "account",
		Short: "sign in and manage your storefront profile",
	}

	signInCmd = &cobra.Command{
		Use:   "signin",
		Short: "sign in with email and password",
		Args:  cobra.NoArgs,
		Run:   cmd.Perform("account signin", runSignIn),
	}

	signUpCmd = &cobra.Command{
		Use:   "signup",
		Short: "create an account",
		Args:  cobra.NoArgs,
		Run:   cmd.Perform("account signup", runSignUp),
	}

	signOutCmd = &cobra.Command{
		Use:   "signout",
		Short: "sign out and forget the saved session",
		Args:  cobra.NoArgs,
		Run:   cmd.Perform("account signout", runSignOut),
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "show the signed in user",
		Args:  cobra.NoArgs,
		Run:   cmd.Perform("account status", runStatus),
	}

	oauthURLCmd = &cobra.Command{
		Use:   "oauth-url <github|google>",
		Short: "print the url to sign in with a social provider",
		Args:  cobra.ExactArgs(1),
		Run:   cmd.Perform("account oauth-url", runOAuthURL),
	}

	profileCmd = &cobra.Command{
		Use:   "profile",
		Short: "update your profile",
	}

	profileNameCmd = &cobra.Command{
		Use:   "name <full name>",
		Short: "set your full name",
		Args:  cobra.ExactArgs(1),
		Run:   cmd.Perform("account profile name", runProfileName),
	}

	profilePasswordCmd = &cobra.Command{
		Use:   "password",
		Short: "set a new password",
		Args:  cobra.NoArgs,
		Run:   cmd.Perform("account profile password", runProfilePassword),
	}

	profileAvatarCmd = &cobra.Command{
		Use:   "avatar <image file>",
		Short: "upload a new avatar",
		Args:  cobra.ExactArgs(1),
		Run:   cmd.Perform("account profile avatar", runProfileAvatar),
	}
)

func init() {
	cmd.RootCmd.AddCommand(AccountCmd)

	AccountCmd.AddCommand(signInCmd, signUpCmd, signOutCmd, statusCmd, oauthURLCmd, profileCmd)
	profileCmd.AddCommand(profileNameCmd, profilePasswordCmd, profileAvatarCmd)

	cmd.NewFlagBuilder(oauthURLCmd).
		String("redirect-to", "http://localhost:3000/",
			"where the provider sends the browser after signing in").
		Bind().
		Env("OAUTH_REDIRECT_TO")

	cmd.NewFlagBuilder(profileAvatarCmd).
		String("storage-region", storage.DefaultRegion,
			"the region of the provider's s3 compatible storage").
		Bind().
		Env("STORAGE_REGION")
}

// Session is an open SessionContext whose refresh token is saved between runs
type Session struct {
	*account.SessionContext
	stopPersist func()
}

// Close stops saving the session and detaches it from the provider
func (s *Session) Close() error {
	s.stopPersist()
	return s.SessionContext.Close()
}

// OpenSession restores the saved session. A session that cannot be restored leaves the user signed out.
func OpenSession(ctx context.Context) (*Session, error) {
	logger := logging.Logger(ctx, "accountcli.OpenSession")

	url, anonKey := viper.GetString("supabase-url"), viper.GetString("supabase-anon-key")
	if url == "" || anonKey == "" {
		return nil, errorutils.NewFault(errorutils.ErrNotConfigured,
			"Accounts are not configured. Please set SUPABASE_URL and SUPABASE_ANON_KEY.", nil)
	}

	provider, err := gotrue.New(url, anonKey)
	if err != nil {
		return nil, fmt.Errorf("error creating identity provider client: %w", err)
	}

	tokens, err := tokenFile()
	if err != nil {
		return nil, err
	}

	refreshToken, err := tokens.Load()
	if err != nil {
		return nil, err
	}

	sc := account.NewSessionContext(provider)
	stop := account.Persist(sc, tokens, func(err error) {
		logger.Warn().Err(err).Msg("failed to save session")
	})

	if err := sc.Start(ctx, refreshToken); err != nil {
		if errors.Is(err, account.ErrClosed) || errors.Is(err, account.ErrAlreadyStarted) {
			stop()
			return nil, err
		}

		logger.Warn().Err(err).Msg("continuing signed out")
	}

	return &Session{SessionContext: sc, stopPersist: stop}, nil
}

func tokenFile() (*account.TokenFile, error) {
	if path := os.Getenv("STOREFRONT_SESSION_FILE"); path != "" {
		return account.NewTokenFile(filepath.Clean(path)), nil
	}

	return account.DefaultTokenFile()
}

func withSession(command *cobra.Command, fn func(ctx context.Context, s *Session, p *prompt.Prompter) error) error {
	ctx := command.Context()

	s, err := OpenSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	p := prompt.New(command.InOrStdin(), command.OutOrStdout())
	if command.InOrStdin() == os.Stdin {
		p = prompt.Stdio()
	}

	return fn(ctx, s, p)
}

func runSignIn(command *cobra.Command, args []string) error {
	return withSession(command, func(ctx context.Context, s *Session, p *prompt.Prompter) error {
		email, err := p.String("Email")
		if err != nil {
			return err
		}

		password, err := p.Password("Password")
		if err != nil {
			return err
		}

		user, err := s.SignIn(ctx, email, password)
		if err != nil {
			return err
		}

		p.Println("Signed in as " + user.Email)
		return nil
	})
}

func runSignUp(command *cobra.Command, args []string) error {
	return withSession(command, func(ctx context.Context, s *Session, p *prompt.Prompter) error {
		var (
			req account.SignUpRequest
			err error
		)

		if req.FullName, err = p.String("Full name"); err != nil {
			return err
		}

		if req.Email, err = p.String("Email"); err != nil {
			return err
		}

		if req.Password, err = p.Password("Password"); err != nil {
			return err
		}

		if req.ConfirmPassword, err = p.Password("Confirm password"); err != nil {
			return err
		}

		result, err := s.SignUp(ctx, req)
		if err != nil {
			return err
		}

		p.Println(result.Message)
		return nil
	})
}

func runSignOut(command *cobra.Command, args []string) error {
	return withSession(command, func(ctx context.Context, s *Session, p *prompt.Prompter) error {
		if err := s.SignOut(ctx); err != nil {
			return err
		}

		p.Println("Signed out")
		return nil
	})
}

func runStatus(command *cobra.Command, args []string) error {
	return withSession(command, func(ctx context.Context, s *Session, p *prompt.Prompter) error {
		user := s.User()
		if user == nil {
			p.Println("Not signed in")
			return nil
		}

		p.Println("Signed in as " + user.Email)
		if user.UserMetadata.FullName != "" {
			p.Println("Name: " + user.UserMetadata.FullName)
		}
		if user.UserMetadata.AvatarURL != "" {
			p.Println("Avatar: " + user.UserMetadata.AvatarURL)
		}
		return nil
	})
}

func runOAuthURL(command *cobra.Command, args []string) error {
	return withSession(command, func(ctx context.Context, s *Session, p *prompt.Prompter) error {
		u, err := s.OAuthURL(args[0], viper.GetString("redirect-to"))
		if err != nil {
			return err
		}

		p.Println(u)
		return nil
	})
}

func runProfileName(command *cobra.Command, args []string) error {
	return withSession(command, func(ctx context.Context, s *Session, p *prompt.Prompter) error {
		if _, err := account.NewService(s.SessionContext, nil).UpdateName(ctx, args[0]); err != nil {
			return err
		}

		p.Println(account.MsgNameUpdated)
		return nil
	})
}

func runProfilePassword(command *cobra.Command, args []string) error {
	return withSession(command, func(ctx context.Context, s *Session, p *prompt.Prompter) error {
		password, err := p.Password("New password")
		if err != nil {
			return err
		}

		if err := account.NewService(s.SessionContext, nil).UpdatePassword(ctx, password); err != nil {
			return err
		}

		p.Println(account.MsgPasswordUpdated)
		return nil
	})
}

func runProfileAvatar(command *cobra.Command, args []string) error {
	return withSession(command, func(ctx context.Context, s *Session, p *prompt.Prompter) error {
		store, err := storage.New(storage.Config{
			ProjectURL: viper.GetString("supabase-url"),
			AnonKey:    viper.GetString("supabase-anon-key"),
			Region:     viper.GetString("storage-region"),
		})
		if err != nil {
			return err
		}

		f, err := os.Open(filepath.Clean(args[0]))
		if err != nil {
			return fmt.Errorf("error opening avatar: %w", err)
		}
		defer func() { _ = f.Close() }()

		publicURL, err := account.NewService(s.SessionContext, store).UploadAvatar(ctx, filepath.Base(args[0]), f)
		if err != nil {
			return err
		}

		p.Println(account.MsgProfileUpdated)
		p.Println("Avatar: " + publicURL)
		return nil
	})
}
