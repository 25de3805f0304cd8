// Package shopcli serves the storefront payment api.
package shopcli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/folioshop/storefront/cmd"
	appctx "github.com/folioshop/storefront/libs/context"
	"github.com/folioshop/storefront/libs/logging"
	"github.com/folioshop/storefront/services/shop"
)

var (
	// ShopCmd serves the payment and catalog api
	ShopCmd = &cobra.Command{
		Use:   "shop",
		Short: "serve the shop payment and catalog api",
		Run:   cmd.Perform("serve shop", RunShopServer),
	}
)

func init() {
	cmd.ServeCmd.AddCommand(ShopCmd)

	builder := cmd.NewFlagBuilder(ShopCmd)

	builder.Flag().String("razorpay-key-id", "",
		"the payment gateway key id").
		Bind().
		Env("RAZORPAY_KEY_ID")

	builder.Flag().String("razorpay-public-key-id", "",
		"the public alias of the payment gateway key id, preferred when both are set").
		Bind().
		Env("NEXT_PUBLIC_RAZORPAY_KEY_ID")

	builder.Flag().String("razorpay-secret", "",
		"the payment gateway secret").
		Bind().
		Env("RAZORPAY_SECRET")

	builder.Flag().StringSlice("allowed-origins", []string{"http://localhost:3000"},
		"origins allowed to call the api from a browser").
		Bind().
		Env("ALLOWED_ORIGINS")
}

// RunShopServer is the runner for starting up the shop server
func RunShopServer(command *cobra.Command, args []string) error {
	ctx := command.Context()

	ctx = context.WithValue(ctx, appctx.RateLimitPerMinuteCTXKey, viper.GetInt("rate-limit-per-min"))
	ctx = context.WithValue(ctx, appctx.RedisAddrCTXKey, viper.GetString("redis-addr"))

	cfg := shop.Config{
		KeyID:       viper.GetString("razorpay-key-id"),
		PublicKeyID: viper.GetString("razorpay-public-key-id"),
		Secret:      viper.GetString("razorpay-secret"),
	}

	return ShopServer(ctx, viper.GetString("address"), cfg, splitOrigins(viper.GetStringSlice("allowed-origins")))
}

// splitOrigins accepts both repeated flags and a comma separated environment value
func splitOrigins(values []string) []string {
	var result []string
	for _, v := range values {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				result = append(result, o)
			}
		}
	}
	return result
}

// ShopServer runs the shop server until ctx is cancelled or the process is interrupted
func ShopServer(ctx context.Context, address string, cfg shop.Config, origins []string) error {
	logger, err := appctx.GetLogger(ctx)
	if err != nil {
		ctx, logger = logging.SetupLogger(ctx)
	}

	flush := cmd.SetupSentry(ctx)
	defer flush()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := shop.NewServiceWithGateway(cfg)
	if !svc.IsConfigured() {
		logger.Warn().Msg("payment gateway credentials are missing, order creation will fail until the server is restarted with them")
	}

	catalog, err := shop.DefaultCatalog()
	if err != nil {
		return err
	}

	r := cmd.SetupRouter(ctx)
	r.Mount("/api", shop.Router(svc, catalog, origins))

	cmd.ServeMetrics(ctx)

	srv := http.Server{
		Addr:         address,
		Handler:      chi.ServerBaseContext(ctx, r),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server")
		}
	}()

	logger.Info().Str("address", address).Msg("listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sentry.CaptureException(err)
		return err
	}

	return nil
}
