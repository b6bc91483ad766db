// Command ytscrape harvests video links and contact details from YouTube
// channels with a real Chrome session.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ytscrape/youtube"
)

// globalFlags override the loaded configuration when set.
type globalFlags struct {
	configPath  string
	headless    bool
	concurrency int
	logLevel    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "ytscrape",
		Short: "Harvest video links and contact details from YouTube channels",
		Long: `ytscrape drives a Chrome session through YouTube channel pages.

Credentials and the captcha API key are read from YTSCRAPE_LOGIN_EMAIL,
YTSCRAPE_LOGIN_PASSWORD and YTSCRAPE_CAPTCHA_API_KEY (or the files named by
the matching *_FILE variables, or the configured .env file).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ytscrape.json or ~/.config/ytscrape/ytscrape.json)")
	pf.BoolVar(&g.headless, "headless", false, "run Chrome without a window")
	pf.IntVar(&g.concurrency, "concurrency", 1, "number of parallel browser sessions")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newScrapeCmd(g, "links", youtube.ModeLinks, "Harvest every video link of each channel"),
		newScrapeCmd(g, "details", youtube.ModeDetails, "Sign in and extract contact details of each channel"),
		newScrapeCmd(g, "run", youtube.ModeAll, "Harvest links, then extract details, for each channel"),
		newShowCmd(g),
	)
	return root
}

func newScrapeCmd(g *globalFlags, use string, mode youtube.Mode, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [channel...]",
		Short: short,
		Long: short + `.

Channels are handles (@name), channel IDs, or channel URLs. With no
arguments the channels listed in the config file are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()

			channels, err := a.channels(args)
			if err != nil {
				return err
			}
			r, err := a.runner(mode)
			if err != nil {
				return err
			}

			report, runErr := r.Run(cmd.Context(), channels)
			if report != nil {
				printReport(cmd.OutOrStdout(), report, mode)
				printMetrics(cmd.ErrOrStderr())
			}
			if runErr != nil {
				return fmt.Errorf("interrupted: %w", runErr)
			}
			if n := report.Failed(); n > 0 {
				return fmt.Errorf("%d of %d channels failed", n, len(report.Outcomes))
			}
			return nil
		},
	}
}

func newShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print stored channels, contact details and scrape state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.Close()
			return printStore(cmd.Context(), cmd.OutOrStdout(), a.store)
		},
	}
}
