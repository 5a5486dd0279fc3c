package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"forumscraper/pkg/progress"
	"forumscraper/pkg/session"
)

var (
	// Scrape command flags
	queryType  string
	target     int64
	rateLimit  int
	maxRetries int
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <platform> <query>",
	Short: "Start a new scrape session against a platform",
	Long: `Start a new scrape session and run it to completion.

The query is interpreted per platform:
  reddit      a subreddit, optionally with a sort ("golang" or "golang/top")
  hackernews  a story category (top, new, best, ask, show, job)

Press Ctrl-C once to pause the session; its progress and resume cursor are
persisted, and 'forumscraper sessions resume <id>' picks up where it left off.
Press Ctrl-C twice to cancel.`,
	Example: `  # Scrape 500 posts from r/golang
  forumscraper scrape reddit golang --target 500

  # Scrape Hacker News top stories until exhausted
  forumscraper scrape hackernews top

  # Tighter rate limit
  forumscraper scrape reddit golang --target 100 --rate-limit 30`,
	Args: cobra.ExactArgs(2),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&queryType, "query-type", "", "query type (default: subreddit for reddit, category for hackernews)")
	scrapeCmd.Flags().Int64VarP(&target, "target", "t", 0, "target item count (0 scrapes until the platform is exhausted)")
	scrapeCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "override requests per minute")
	scrapeCmd.Flags().IntVar(&maxRetries, "max-retries", -1, "override maximum retry attempts per page")
}

func runScrape(cmd *cobra.Command, args []string) error {
	platformName := strings.ToLower(strings.TrimSpace(args[0]))
	queryValue := strings.TrimSpace(args[1])

	flags := make(map[string]interface{})
	if rateLimit > 0 {
		flags["rate-limit"] = rateLimit
	}
	if maxRetries >= 0 {
		flags["max-retries"] = maxRetries
	}

	a, err := newApp(flags)
	if err != nil {
		return err
	}
	defer a.Close()

	qt := queryType
	if qt == "" {
		switch platformName {
		case "hackernews":
			qt = "category"
		default:
			qt = "subreddit"
		}
	}

	ctx := context.Background()
	sess, err := a.manager.CreateSession(ctx, session.CreateParams{
		Platform:        platformName,
		QueryType:       qt,
		QueryValue:      queryValue,
		TargetItemCount: target,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Session %s created for %s %s:%s\n", sess.ID, sess.Platform, qt, queryValue)

	a.manager.Subscribe(printEvents(a))

	if err := a.manager.StartSession(ctx, sess.ID); err != nil {
		return err
	}

	// First Ctrl-C pauses, second cancels
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		fmt.Println("\nPausing session... (Ctrl-C again to cancel)")
		go func() {
			if err := a.manager.PauseSession(ctx, sess.ID); err != nil {
				a.log.WithError(err).Error("pause failed")
			}
		}()
		<-sigCh
		fmt.Println("\nCancelling session...")
		if err := a.manager.CancelSession(ctx, sess.ID); err != nil {
			a.log.WithError(err).Error("cancel failed")
		}
	}()

	a.manager.Wait(sess.ID)

	final, err := a.manager.GetSession(ctx, sess.ID)
	if err != nil {
		return err
	}

	fmt.Printf("\nSession %s %s: %d items (%d posts, %d comments, %d users)\n",
		final.ID, final.Status, final.ScrapedItemCount, final.PostCount, final.CommentCount, final.UserCount)
	if final.Status == session.StatusPaused {
		fmt.Printf("Resume with: forumscraper sessions resume %s\n", final.ID)
	}
	if final.LastError != "" {
		fmt.Printf("Last error: %s\n", final.LastError)
	}
	if final.Status == session.StatusFailed {
		os.Exit(1)
	}
	return nil
}

// printEvents renders manager events for interactive runs
func printEvents(a *app) session.Listener {
	return func(ev session.Event) {
		switch ev.Type {
		case session.EventMilestone:
			snap, err := a.manager.GetProgress(context.Background(), ev.SessionID)
			if err != nil {
				return
			}
			fmt.Printf("  %3d%% complete: %d items%s\n", int(ev.Milestone), ev.Items, formatETA(snap))
		case session.EventRetry:
			fmt.Printf("  retrying (attempt %d): %s\n", ev.Attempt, ev.Err)
		}
	}
}

func formatETA(snap progress.Snapshot) string {
	if !snap.HasETA || snap.ETA <= 0 {
		return ""
	}
	return fmt.Sprintf(", ETA %s", snap.ETA.Round(time.Second))
}
