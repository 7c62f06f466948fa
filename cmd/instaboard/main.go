package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ChristinaDay/InstaBoard/internal/annotate"
	"github.com/ChristinaDay/InstaBoard/internal/api"
	"github.com/ChristinaDay/InstaBoard/internal/board"
	"github.com/ChristinaDay/InstaBoard/internal/domain"
	"github.com/ChristinaDay/InstaBoard/internal/filter"
	"github.com/ChristinaDay/InstaBoard/internal/geocode"
	"github.com/ChristinaDay/InstaBoard/internal/posts"
	"github.com/ChristinaDay/InstaBoard/internal/storage"
)

var (
	dbPath    string
	indexPath string
)

func main() {
	_ = godotenv.Load()

	// Default database location
	home, _ := os.UserHomeDir()
	defaultDB := envOrDefault("INSTABOARD_DB", filepath.Join(home, ".instaboard", "instaboard.db"))

	rootCmd := &cobra.Command{
		Use:   "instaboard",
		Short: "Local moodboard for your saved posts: browse, tag, and map them",
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "annotation database path")
	rootCmd.PersistentFlags().StringVar(&indexPath, "index", os.Getenv("INSTABOARD_INDEX"), "saved index CSV (default: saved_index_with_location.csv or saved_index.csv in the current directory)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(tagCmd())
	rootCmd.AddCommand(untagCmd())
	rootCmd.AddCommand(noteCmd())
	rootCmd.AddCommand(flagCmd())
	rootCmd.AddCommand(lensCmd())
	rootCmd.AddCommand(bulkTagCmd())
	rootCmd.AddCommand(tagsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(insightsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func openDB() (*storage.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return storage.Open(dbPath)
}

func loadIndex() ([]domain.Post, error) {
	path := indexPath
	if path == "" {
		found, err := posts.FindIndex(".")
		if err != nil {
			return nil, err
		}
		path = found
	}
	return posts.Load(path)
}

// openBoard opens storage, loads the index, and hydrates the session state.
// When requireIndex is false a missing index only logs a warning, so
// annotation commands keep working away from the export directory.
func openBoard(requireIndex bool) (*board.Board, func(), error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}

	all, err := loadIndex()
	if err != nil {
		if requireIndex {
			db.Close()
			return nil, nil, err
		}
		slog.Warn("saved index not loaded", "error", err)
	}

	b := board.New(db)
	b.Hydrate(all)
	return b, func() { db.Close() }, nil
}

// filterFlags carries the shared filter options of list and insights.
type filterFlags struct {
	query       string
	tag         string
	location    string
	videos      bool
	northstar   bool
	categorized bool
	hasLocation bool
	categories  []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "free-text search")
	cmd.Flags().StringVar(&f.tag, "tag", "", "tag substring filter")
	cmd.Flags().StringVar(&f.location, "location", "", "location substring filter")
	cmd.Flags().BoolVar(&f.videos, "videos", false, "videos only")
	cmd.Flags().BoolVar(&f.northstar, "northstar", false, "northstar posts only")
	cmd.Flags().BoolVar(&f.categorized, "categorized", false, "posts with at least one lens only")
	cmd.Flags().BoolVar(&f.hasLocation, "has-location", false, "posts with a location label only")
	cmd.Flags().StringSliceVar(&f.categories, "category", nil, "lens filter, repeatable (OR semantics)")
}

func (f *filterFlags) spec() filter.Spec {
	return filter.Spec{
		Query:           f.query,
		TagQuery:        f.tag,
		LocationQuery:   f.location,
		VideosOnly:      f.videos,
		NorthstarOnly:   f.northstar,
		CategorizedOnly: f.categorized,
		Categories:      annotate.NormalizeCategories(f.categories),
		HasLocationOnly: f.hasLocation,
	}
}

func serveCmd() *cobra.Command {
	var (
		addr       string
		watch      bool
		geocodeRun bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gallery API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			path := indexPath
			if path == "" {
				if path, err = posts.FindIndex("."); err != nil {
					return err
				}
			}
			all, err := posts.Load(path)
			if err != nil {
				return err
			}

			b := board.New(db)
			b.Hydrate(all)
			slog.Info("board ready", "posts", len(all), "annotations", len(b.Annotations()))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)

			server := api.New(b, addr)
			g.Go(func() error { return server.Run(ctx) })

			if watch {
				g.Go(func() error {
					return posts.Watch(ctx, path, func() {
						reloaded, err := posts.Load(path)
						if err != nil {
							slog.Warn("reload saved index", "error", err)
							return
						}
						b.ReplacePosts(reloaded)
						slog.Info("saved index reloaded", "posts", len(reloaded))
					})
				})
			}

			if geocodeRun {
				g.Go(func() error {
					client := geocode.NewClient(
						envOrDefault("INSTABOARD_GEOCODE_URL", geocode.DefaultBaseURL),
						envOrDefault("INSTABOARD_USER_AGENT", "instaboard/1.0 (local moodboard)"),
					)
					resolver := geocode.NewResolver(client, db, geocode.DefaultThrottle)
					return resolver.Resolve(ctx, b.Locations(filter.Spec{}))
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", envOrDefault("INSTABOARD_ADDR", ":8790"), "server address")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the index CSV when it changes")
	cmd.Flags().BoolVar(&geocodeRun, "geocode", false, "resolve location labels to map coordinates in the background")
	return cmd
}

func listCmd() *cobra.Command {
	var limit int
	f := &filterFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts matching the filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := openBoard(true)
			if err != nil {
				return err
			}
			defer closeFn()

			matched := b.Filter(f.spec())
			if len(matched) == 0 {
				fmt.Println("No matching posts.")
				return nil
			}

			shown := matched
			if limit > 0 && limit < len(shown) {
				shown = shown[:limit]
			}
			for _, p := range shown {
				marks := ""
				if ann, ok := b.Get(p.ID); ok {
					if ann.Flags[domain.FlagNorthstar] {
						marks = " *"
					}
					if len(ann.Tags) > 0 {
						marks += "  [" + strings.Join(ann.Tags, " ") + "]"
					}
				}
				fmt.Printf("%-14s @%-20s %s%s\n", p.ID, p.OwnerUsername, truncate(p.CaptionText, 60), marks)
			}
			fmt.Printf("\n%d of %d posts\n", len(matched), len(b.Posts()))
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "max posts to show (0 = all)")
	return cmd
}

func tagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag [post-id] [tag]",
		Short: "Add a tag to a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := openBoard(false)
			if err != nil {
				return err
			}
			defer closeFn()

			ann := b.AddTag(args[0], strings.Join(args[1:], " "))
			fmt.Printf("%s: %s\n", args[0], strings.Join(ann.Tags, ", "))
			return nil
		},
	}
}

func untagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "untag [post-id] [tag]",
		Short: "Remove a tag from a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := openBoard(false)
			if err != nil {
				return err
			}
			defer closeFn()

			ann := b.RemoveTag(args[0], strings.Join(args[1:], " "))
			fmt.Printf("%s: %s\n", args[0], strings.Join(ann.Tags, ", "))
			return nil
		},
	}
}

func noteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note [post-id] [text]",
		Short: "Set the notes on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := openBoard(false)
			if err != nil {
				return err
			}
			defer closeFn()

			notes := strings.Join(args[1:], " ")
			b.Upsert(args[0], annotate.Patch{Notes: &notes})
			fmt.Printf("Noted %s\n", args[0])
			return nil
		},
	}
}

func flagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flag [post-id] [name] [true|false]",
		Short: "Set a boolean flag (northstar, enjoyWork) on a post",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseBool(args[2])
			if err != nil {
				return fmt.Errorf("flag value must be true or false: %w", err)
			}

			b, closeFn, err := openBoard(false)
			if err != nil {
				return err
			}
			defer closeFn()

			b.Upsert(args[0], annotate.Patch{Flags: map[string]bool{args[1]: value}})
			fmt.Printf("%s: %s=%t\n", args[0], args[1], value)
			return nil
		},
	}
}

func lensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lens [post-id] [lens...]",
		Short: "Set the career lenses on a post (empty list clears them)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := openBoard(false)
			if err != nil {
				return err
			}
			defer closeFn()

			lenses := args[1:]
			if lenses == nil {
				lenses = []string{}
			}
			ann := b.Upsert(args[0], annotate.Patch{Categories: lenses})

			if len(ann.Categories) == 0 {
				fmt.Printf("%s: no lenses\n", args[0])
				return nil
			}
			names := make([]string, len(ann.Categories))
			for i, c := range ann.Categories {
				names[i] = string(c)
			}
			fmt.Printf("%s: %s\n", args[0], strings.Join(names, ", "))
			return nil
		},
	}
}

func bulkTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bulk-tag [tag] [post-id...]",
		Short: "Add one tag to many posts at once",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := openBoard(false)
			if err != nil {
				return err
			}
			defer closeFn()

			changed := b.BulkAddTag(args[1:], args[0])
			fmt.Printf("Tagged %d of %d posts\n", changed, len(args)-1)
			return nil
		},
	}
}

func tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List every tag in the annotation store",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := openBoard(false)
			if err != nil {
				return err
			}
			defer closeFn()

			tags := b.AllTags()
			if len(tags) == 0 {
				fmt.Println("No tags yet. Use 'instaboard tag' to add one.")
				return nil
			}
			for _, t := range tags {
				fmt.Println(t)
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export annotations as pretty-printed JSON ('-' for stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := openBoard(false)
			if err != nil {
				return err
			}
			defer closeFn()

			data, err := b.ExportJSON()
			if err != nil {
				return err
			}

			out := "annotations.json"
			if len(args) == 1 {
				out = args[0]
			}
			if out == "-" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Printf("Exported %d annotations to %s\n", len(b.Annotations()), out)
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Replace all annotations with the given JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}

			b, closeFn, err := openBoard(false)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := b.ImportJSON(data); err != nil {
				return err
			}
			fmt.Printf("Imported %d annotations\n", len(b.Annotations()))
			return nil
		},
	}
}

func insightsCmd() *cobra.Command {
	var scope string
	f := &filterFlags{}

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show frequency rankings over the filtered (or all) posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := openBoard(true)
			if err != nil {
				return err
			}
			defer closeFn()

			rankings, count := b.Insights(f.spec(), scope)
			fmt.Printf("Insights over %d posts (%s)\n", count, scope)
			printRanking("Top hashtags", rankings.Hashtags)
			printRanking("Top caption keywords", rankings.Keywords)
			printRanking("Top creators", rankings.Owners)
			printRanking("Your tags", rankings.Tags)
			printRanking("Your lenses", rankings.Categories)
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&scope, "scope", "filtered", "ranking scope: filtered or all")
	return cmd
}

func printRanking(title string, items []domain.CountItem) {
	fmt.Printf("\n%s:\n", title)
	if len(items) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, item := range items {
		fmt.Printf("  %4d  %s\n", item.Count, item.Value)
	}
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
