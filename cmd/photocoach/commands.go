package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lenslab/photocoach/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the coach a question, optionally about a photo",
	Long: `Ask the coach a question, optionally about a photo.

Examples:
  photocoach ask "How do I improve my composition?"
  photocoach ask --image ./shot.jpg "Why does this portrait look flat?"
  photocoach ask --user alice --skill advanced "When should I use f/1.4?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		user, _ := cmd.Flags().GetString("user")
		skill, _ := cmd.Flags().GetString("skill")
		imagePath, _ := cmd.Flags().GetString("image")

		req := map[string]any{
			"user_id": user,
			"query":   query,
		}
		if skill != "" {
			req["skill_level"] = skill
		}
		if imagePath != "" {
			data, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}
			req["image_base64"] = base64.StdEncoding.EncodeToString(data)
			req["image_mime"] = mimeForPath(imagePath)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/coach", req)
		if err != nil {
			return err
		}

		var result struct {
			Text   string `json:"text"`
			Vision *struct {
				Summary string `json:"summary"`
			} `json:"vision"`
			Coach struct {
				Exercise string `json:"exercise"`
			} `json:"coach"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Vision != nil && result.Vision.Summary != "" {
			fmt.Printf("%s %s\n\n", colorize(colorBold, "Photo:"), result.Vision.Summary)
		}
		fmt.Println(result.Text)
		if result.Coach.Exercise != "" {
			fmt.Printf("\n%s %s\n", colorize(colorBold, "Exercise:"), result.Coach.Exercise)
		}
		return nil
	},
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func init() {
	askCmd.Flags().String("user", "default", "user whose session to coach against")
	askCmd.Flags().String("skill", "", "skill level override (beginner, intermediate, advanced)")
	askCmd.Flags().String("image", "", "path to a photo to analyze with the question")
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <pdf-path>",
	Short: "Queue a PDF for ingestion into the document index",
	Long: `Queue a PDF for ingestion into the document index.

Examples:
  photocoach ingest ./understanding-exposure.pdf
  photocoach ingest --title "Lighting notes" --tags lighting,studio ./notes.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		title, _ := cmd.Flags().GetString("title")
		tagsStr, _ := cmd.Flags().GetString("tags")

		var tags []string
		if tagsStr != "" {
			tags = strings.Split(tagsStr, ",")
			for i := range tags {
				tags[i] = strings.TrimSpace(tags[i])
			}
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		req := map[string]any{"path": abs}
		if title != "" {
			req["title"] = title
		}
		if tags != nil {
			req["tags"] = tags
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/ingest", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued document %s", result["id"])
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("title", "", "title for the document")
	ingestCmd.Flags().String("tags", "", "comma-separated tags")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the curated knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/v1/knowledge/search?q=%s&limit=%d", url.QueryEscape(query), limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var results []struct {
			Text     string  `json:"text"`
			Source   string  `json:"source"`
			Category string  `json:"category"`
			Score    float32 `json:"relevance_score"`
		}
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("\n%s [score: %.3f]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), r.Score)
			if r.Category != "" {
				fmt.Printf("  Category: %s\n", r.Category)
			}
			text := r.Text
			if len(text) > 500 {
				text = text[:500] + "..."
			}
			fmt.Printf("  %s\n", text)
			fmt.Printf("  Source: %s\n", r.Source)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- session ---

var sessionCmd = &cobra.Command{
	Use:   "session [user]",
	Short: "Show a user's coaching session as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := "default"
		if len(args) > 0 {
			user = args[0]
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/sessions/"+url.PathEscape(user))
		if err != nil {
			return err
		}

		var sess any
		if err := decodeJSON(resp, &sess); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
