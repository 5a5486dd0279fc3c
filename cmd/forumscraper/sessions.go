package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"forumscraper/pkg/session"
)

// sessionsCmd groups session management subcommands
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and control scrape sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.manager.ListSessions(context.Background())
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPLATFORM\tQUERY\tSTATUS\tITEMS\tTARGET\tCREATED")
		for _, s := range sessions {
			targetStr := "-"
			if s.TargetItemCount > 0 {
				targetStr = fmt.Sprintf("%d", s.TargetItemCount)
			}
			fmt.Fprintf(w, "%s\t%s\t%s:%s\t%s\t%d\t%s\t%s\n",
				s.ID, s.Platform, s.QueryType, s.QueryValue, s.Status,
				s.ScrapedItemCount, targetStr, s.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		s, err := a.manager.GetSession(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:        %s\n", s.ID)
		fmt.Printf("Platform:  %s\n", s.Platform)
		fmt.Printf("Query:     %s:%s\n", s.QueryType, s.QueryValue)
		fmt.Printf("Status:    %s\n", s.Status)
		if s.TargetItemCount > 0 {
			fmt.Printf("Progress:  %d / %d items\n", s.ScrapedItemCount, s.TargetItemCount)
		} else {
			fmt.Printf("Progress:  %d items (unbounded)\n", s.ScrapedItemCount)
		}
		fmt.Printf("Breakdown: %d posts, %d comments, %d users\n", s.PostCount, s.CommentCount, s.UserCount)
		if s.ResumeToken != "" {
			fmt.Printf("Cursor:    %s\n", s.ResumeToken)
		}
		fmt.Printf("Created:   %s\n", s.CreatedAt.Local().Format(time.RFC1123))
		if !s.CompletedAt.IsZero() {
			fmt.Printf("Finished:  %s\n", s.CompletedAt.Local().Format(time.RFC1123))
		}
		if s.ErrorCount > 0 {
			fmt.Printf("Errors:    %d (last: %s)\n", s.ErrorCount, s.LastError)
		}
		return nil
	},
}

var sessionsResumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume a paused session and run it to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		a.manager.Subscribe(printEvents(a))

		if err := a.manager.ResumeSession(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Session %s resumed\n", args[0])

		a.manager.Wait(args[0])

		final, err := a.manager.GetSession(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Session %s %s: %d items\n", final.ID, final.Status, final.ScrapedItemCount)
		if final.Status == session.StatusFailed {
			os.Exit(1)
		}
		return nil
	},
}

var sessionsPauseCmd = &cobra.Command{
	Use:   "pause <session-id>",
	Short: "Mark an interrupted session paused so it can be resumed",
	Long: `Mark a session paused.

A session that was running when its process died is still recorded as running.
Pausing it acknowledges the interruption; 'sessions resume' then continues from
the persisted cursor. Resume also accepts such sessions directly, so this is
optional bookkeeping.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.manager.PauseSession(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Session %s paused\n", args[0])
		return nil
	},
}

var sessionsCancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a pending, running or paused session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.manager.CancelSession(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Session %s cancelled\n", args[0])
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		s, err := a.manager.GetSession(ctx, args[0])
		if err != nil {
			return err
		}
		if s.Status.Active() {
			return fmt.Errorf("session %s is %s; cancel it before deleting", s.ID, s.Status)
		}
		if err := a.store.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Session %s deleted\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsResumeCmd)
	sessionsCmd.AddCommand(sessionsPauseCmd)
	sessionsCmd.AddCommand(sessionsCancelCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
