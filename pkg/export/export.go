package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"forumscraper/pkg/models"
)

// Format identifies an export encoding
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat resolves a user-supplied format name
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want json, csv or markdown)", name)
	}
}

// WritePosts encodes posts to w in the given format
func WritePosts(w io.Writer, posts []models.Post, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, posts)
	case FormatCSV:
		return writeCSV(w, posts)
	case FormatMarkdown:
		return writeMarkdown(w, posts)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func writeJSON(w io.Writer, posts []models.Post) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if posts == nil {
		posts = []models.Post{}
	}
	return enc.Encode(posts)
}

var csvHeader = []string{"id", "platform", "title", "author", "url", "score", "comments", "subforum", "created_at", "scraped_at"}

func writeCSV(w io.Writer, posts []models.Post) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, p := range posts {
		record := []string{
			p.ID, p.Platform, p.Title, p.Author, p.URL,
			strconv.Itoa(p.Score), strconv.Itoa(p.Comments), p.Subforum,
			formatTime(p.CreatedAt), formatTime(p.ScrapedAt),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeMarkdown(w io.Writer, posts []models.Post) error {
	var b strings.Builder
	b.WriteString("| Title | Author | Score | Comments | Platform | Created |\n")
	b.WriteString("|---|---|---:|---:|---|---|\n")
	for _, p := range posts {
		title := escapeMarkdown(p.Title)
		if p.URL != "" {
			title = fmt.Sprintf("[%s](%s)", title, p.URL)
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %s | %s |\n",
			title, escapeMarkdown(p.Author), p.Score, p.Comments, p.Platform, formatTime(p.CreatedAt))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
