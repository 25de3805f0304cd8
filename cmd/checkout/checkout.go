// Package checkoutcli buys catalog products through the storefront api from a terminal.
package checkoutcli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/folioshop/storefront/cmd"
	accountcli "github.com/folioshop/storefront/cmd/account"
	"github.com/folioshop/storefront/libs/clients/shop"
	appctx "github.com/folioshop/storefront/libs/context"
	"github.com/folioshop/storefront/libs/logging"
	"github.com/folioshop/storefront/libs/prompt"
	"github.com/folioshop/storefront/services/checkout"
)

var (
	// CheckoutCmd groups the checkout subcommands
	CheckoutCmd = &cobra.Command{
		Use:   "checkout",
		Short: "browse the catalog and pay for products",
	}

	productsCmd = &cobra.Command{
		Use:   "products",
		Short: "list the catalog",
		Args:  cobra.NoArgs,
		Run:   cmd.Perform("checkout products", runProducts),
	}

	buyCmd = &cobra.Command{
		Use:   "buy <product id>",
		Short: "pay for a product",
		Args:  cobra.ExactArgs(1),
		Run:   cmd.Perform("checkout buy", runBuy),
	}
)

func init() {
	cmd.RootCmd.AddCommand(CheckoutCmd)
	CheckoutCmd.AddCommand(productsCmd, buyCmd)

	// shop-server - shared by the checkout subcommands
	CheckoutCmd.PersistentFlags().String("shop-server", "http://localhost:3000/api",
		"the storefront api base url")
	cmd.Must(viper.BindPFlag("shop-server", CheckoutCmd.PersistentFlags().Lookup("shop-server")))
	cmd.Must(viper.BindEnv("shop-server", "SHOP_SERVER"))

	builder := cmd.NewFlagBuilder(buyCmd)

	builder.Flag().String("embedded-key-id", "",
		"a gateway key id built into the client, skipping the key lookup").
		Bind().
		Env("NEXT_PUBLIC_RAZORPAY_KEY_ID")

	builder.Flag().String("widget-script-url", checkout.DefaultScriptURL,
		"where the gateway widget script is loaded from").
		Bind().
		Env("RAZORPAY_SCRIPT_URL")

	builder.Flag().Duration("readiness-interval", 100*time.Millisecond,
		"how often to check whether the widget has loaded").
		Bind()

	builder.Flag().Int("readiness-attempts", 20,
		"how many times to check whether the widget has loaded").
		Bind()

	builder.Flag().Bool("skip-widget-load", false,
		"treat the widget as loaded without fetching its script").
		Bind()
}

func shopClient(ctx context.Context) (shop.Client, error) {
	ctx = context.WithValue(ctx, appctx.ShopServerCTXKey, viper.GetString("shop-server"))
	return shop.NewWithContext(ctx)
}

func runProducts(command *cobra.Command, args []string) error {
	ctx := command.Context()

	client, err := shopClient(ctx)
	if err != nil {
		return err
	}

	products, err := client.ListProducts(ctx)
	if err != nil {
		return err
	}

	out := command.OutOrStdout()
	for _, p := range products {
		fmt.Fprintf(out, "%-24s %-10s %s\n", p.ID, p.PriceDisplay, p.Title)
	}

	return nil
}

func runBuy(command *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(command.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.Logger(ctx, "checkoutcli.runBuy")

	client, err := shopClient(ctx)
	if err != nil {
		return err
	}

	product, err := client.GetProduct(ctx, args[0])
	if err != nil {
		return err
	}

	p := prompt.New(command.InOrStdin(), command.OutOrStdout())
	if command.InOrStdin() == os.Stdin {
		p = prompt.Stdio()
	}

	widget := checkout.NewTerminalWidget(p)
	if viper.GetBool("skip-widget-load") {
		widget.MarkLoaded()
	} else {
		widget.Load(ctx, viper.GetString("widget-script-url"))
	}

	opts := []checkout.Option{
		checkout.WithReadinessPoll(viper.GetDuration("readiness-interval"), viper.GetInt("readiness-attempts")),
		checkout.WithTransitionObserver(func(from, to checkout.State) {
			logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("checkout state changed")
		}),
	}

	if prefill, ok := signedInPrefill(ctx); ok {
		opts = append(opts, checkout.WithPrefill(prefill))
	}

	orch := checkout.New(
		client,
		checkout.NewKeyResolver(viper.GetString("embedded-key-id"), client),
		widget,
		checkout.NewTerminalNotifier(p),
		opts...,
	)

	result, err := orch.Checkout(ctx, checkout.Product{ID: product.ID, Title: product.Title, Amount: product.Amount})
	if err != nil {
		return err
	}

	if result.State == checkout.StateIdle {
		p.Println("Checkout cancelled")
	}

	return nil
}

// signedInPrefill prefills the widget with the signed in user, when accounts are configured
func signedInPrefill(ctx context.Context) (checkout.Prefill, bool) {
	if viper.GetString("supabase-url") == "" {
		return checkout.Prefill{}, false
	}

	s, err := accountcli.OpenSession(ctx)
	if err != nil {
		logging.Logger(ctx, "checkoutcli.signedInPrefill").Debug().Err(err).Msg("no account session")
		return checkout.Prefill{}, false
	}
	defer func() { _ = s.Close() }()

	user := s.User()
	if user == nil {
		return checkout.Prefill{}, false
	}

	name := user.UserMetadata.FullName
	if name == "" {
		name = user.Email
	}

	return checkout.Prefill{Name: name, Email: user.Email}, true
}
