package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/MarcoPoloResearchLab/lumen/backend/internal/checkout"
	"github.com/MarcoPoloResearchLab/lumen/backend/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type reconcileOptions struct {
	location     string
	courseID     string
	userID       string
	apiBase      string
	sessionToken string
}

// newReconcileCommand replays a checkout-return URL against the completion
// endpoint and reports where the browser would end up.
func newReconcileCommand() *cobra.Command {
	options := &reconcileOptions{}
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay a checkout return URL against the completion endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(options.sessionToken) == "" {
				options.sessionToken = viper.GetString("reconcile.session_token")
			}
			return runReconcile(cmd, options)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&options.location, "url", "", "Checkout return URL, including the success parameter")
	flags.StringVar(&options.courseID, "course", "", "Course id the checkout belongs to")
	flags.StringVar(&options.userID, "user", "", "User id that completed the checkout")
	flags.StringVar(&options.apiBase, "api-base", "http://localhost:8080", "Base URL of the Lumen API")
	flags.StringVar(&options.sessionToken, "session-token", "", "Session token sent as a bearer credential (or LUMEN_RECONCILE_SESSION_TOKEN)")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runReconcile(cmd *cobra.Command, options *reconcileOptions) error {
	logger, err := logging.NewLogger(logging.Options{
		Level:    viper.GetString("log.level"),
		FilePath: viper.GetString("log.file"),
	})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	location, err := url.Parse(strings.TrimSpace(options.location))
	if err != nil {
		return fmt.Errorf("invalid --url: %w", err)
	}
	if location.Scheme == "" || location.Host == "" {
		return errors.New("--url must be absolute")
	}

	completer, err := checkout.NewHTTPCompleter(checkout.HTTPCompleterConfig{
		BaseURL:      options.apiBase,
		SessionToken: options.sessionToken,
	})
	if err != nil {
		return err
	}
	navigator := checkout.NewLoggingNavigator(location, logger)
	reconciler, err := checkout.NewReconciler(checkout.ReconcilerConfig{
		Completer: completer,
		Navigator: navigator,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	outcome := reconciler.Reconcile(cmd.Context(), location, options.courseID, options.userID)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", outcome, navigator.Current())
	if outcome == checkout.OutcomeReloaded {
		return errors.New("purchase completion failed")
	}
	return nil
}
