package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"forumscraper/pkg/export"
)

var (
	exportFormat   string
	exportPlatform string
	exportLimit    int
	exportOutput   string
)

// exportCmd writes scraped posts out of the database
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export scraped posts as JSON, CSV or Markdown",
	Example: `  # All posts as JSON to stdout
  forumscraper export --format json

  # The 100 most recently scraped reddit posts as CSV
  forumscraper export --format csv --platform reddit --limit 100 --output posts.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		posts, err := a.sink.ListPosts(context.Background(), exportPlatform, exportLimit)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if err := export.WritePosts(w, posts, format); err != nil {
			return err
		}
		if exportOutput != "" {
			fmt.Printf("Exported %d posts to %s\n", len(posts), exportOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "export format (json, csv, markdown)")
	exportCmd.Flags().StringVarP(&exportPlatform, "platform", "p", "", "restrict to one platform")
	exportCmd.Flags().IntVarP(&exportLimit, "limit", "n", 0, "maximum number of posts (0 = all)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
}
