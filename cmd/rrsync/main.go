package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"rr-sync/internal/app"
	"rr-sync/internal/catalog"
	"rr-sync/internal/config"
	"rr-sync/internal/model"
	"rr-sync/internal/sw"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a SyncApp. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "serve", "replay").
func newApp(command string) (*app.SyncApp, error) {
	if err := app.LoadDotEnv(); err != nil {
		return nil, err
	}

	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewSyncApp(cfg, command)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "rrsync",
	Short: "Offline-first sync layer for the restaurant reviews app",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", defaults["base_dir"])
		fmt.Printf("App Origin: %s\n", cfg.AppOrigin)
		fmt.Printf("API Origin: %s\n", cfg.APIOrigin)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.LoadDotEnv(); err != nil {
			return err
		}
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Listen:      %s\n", cfg.Listen)
		fmt.Printf("App Origin:  %s\n", cfg.AppOrigin)
		fmt.Printf("API Origin:  %s\n", cfg.APIOrigin)
		fmt.Printf("Cache:       %s (%s)\n", cfg.Cache.Name(), cfg.Cache.Type)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Replay:      every %s, %d at a time\n", cfg.Replay.Interval, cfg.Replay.Concurrency)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Install the worker and serve the app through it",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("serve")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Serving on %s (cache %s)\n", a.Config().Listen, a.Config().Cache.Name())
		return a.Serve(ctx)
	},
}

// install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Precache the app shell into the current cache generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("install")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Worker().Install(cmd.Context()); err != nil {
			return fmt.Errorf("install failed: %w", err)
		}
		fmt.Printf("Installed %s (%d asset(s))\n", a.Config().Cache.Name(), len(a.Config().Cache.Manifest))
		return nil
	},
}

// activate command
var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Delete stale cache generations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("activate")
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.Worker().Activate(cmd.Context())
		if err != nil {
			return fmt.Errorf("activate failed: %w", err)
		}
		if len(deleted) == 0 {
			fmt.Println("No stale caches.")
			return nil
		}
		for _, name := range deleted {
			fmt.Printf("Deleted %s\n", name)
		}
		return nil
	},
}

// replay command
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Send queued favorites and reviews to the Data API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("replay")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Worker().Replay(cmd.Context())
		if err != nil {
			return fmt.Errorf("replay failed: %w", err)
		}
		fmt.Printf("Attempted %d, replayed %d, failed %d, skipped %d\n",
			report.Attempted, report.Replayed, report.Failed, report.Skipped)
		return nil
	},
}

// pending command
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List mutations waiting for replay",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("pending")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Worker().Pending(cmd.Context())
		if err != nil {
			return err
		}
		if len(p.Favorites) == 0 && len(p.Reviews) == 0 {
			fmt.Println("Nothing pending.")
			return nil
		}
		for _, f := range p.Favorites {
			fmt.Printf("favorite  restaurant:%d  is_favorite:%t  seq:%d  %s\n",
				f.RestaurantID, f.IsFavorite, f.Seq, f.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		for _, r := range p.Reviews {
			fmt.Printf("review    %s  restaurant:%d  %s  rating:%d\n",
				r.PlaceholderID, r.RestaurantID, r.Name, r.Rating)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache generations and queue sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("status")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Worker().Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Cache:    %s\n", st.CacheName)
		fmt.Printf("Caches:   %s\n", strings.Join(st.Caches, ", "))
		fmt.Printf("Pending:  %d favorite(s), %d review(s)\n", st.PendingFavorites, st.PendingReviews)
		return nil
	},
}

// restaurants command
var restaurantsCmd = &cobra.Command{
	Use:   "restaurants",
	Short: "List restaurants, online or from the local store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cuisine, _ := cmd.Flags().GetString("cuisine")
		neighborhood, _ := cmd.Flags().GetString("neighborhood")
		favorites, _ := cmd.Flags().GetBool("favorites")

		a, err := newApp("restaurants")
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.Restaurants(cmd.Context(), cuisine, neighborhood, favorites)
		if err != nil {
			return err
		}
		if len(v.Results) == 0 {
			fmt.Println("No restaurants found.")
			return nil
		}
		for _, r := range v.Results {
			marker := " "
			if r.IsFavorite.Bool() {
				marker = "*"
			}
			pending := ""
			if r.FavoriteState == model.PendingLocal {
				pending = "  [pending]"
			}
			fmt.Printf("%s %3d  %-30s  %-12s  %-10s  %s%s\n",
				marker, r.ID, r.Name, r.Neighborhood, r.CuisineType, catalog.URLFor(r), pending)
		}
		return nil
	},
}

// favorite command
var favoriteCmd = &cobra.Command{
	Use:   "favorite ID true|false",
	Short: "Mark or unmark a restaurant as favorite",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid restaurant id %q", args[0])
		}
		value, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid favorite value %q", args[1])
		}

		a, err := newApp("favorite")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Worker().Engine().UpdateFavorite(cmd.Context(), id, value)
		if err != nil {
			return err
		}
		if res.Status == sw.Pending {
			fmt.Printf("Restaurant %d favorite=%t queued for replay\n", id, value)
			return nil
		}
		fmt.Printf("Restaurant %d favorite=%t saved\n", id, value)
		return nil
	},
}

// review command
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Add a review",
	RunE: func(cmd *cobra.Command, args []string) error {
		restaurantID, _ := cmd.Flags().GetInt64("restaurant")
		name, _ := cmd.Flags().GetString("name")
		rating, _ := cmd.Flags().GetInt("rating")
		comments, _ := cmd.Flags().GetString("comments")

		a, err := newApp("review")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Worker().Engine().AddReview(cmd.Context(), model.ReviewInput{
			RestaurantID: restaurantID,
			Name:         name,
			Rating:       model.Rating(rating),
			Comments:     comments,
		})
		if errors.Is(err, sw.ErrInvalidReview) {
			return fmt.Errorf("review rejected: %w", err)
		}
		if err != nil {
			return err
		}
		if res.Status == sw.Pending {
			fmt.Printf("Review %s queued for replay\n", res.Review.PlaceholderID)
			return nil
		}
		fmt.Printf("Review #%d saved\n", res.Review.ID)
		return nil
	},
}

// reviews command
var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "List reviews, online or from the local store",
	RunE: func(cmd *cobra.Command, args []string) error {
		restaurantID, _ := cmd.Flags().GetInt64("restaurant")

		a, err := newApp("reviews")
		if err != nil {
			return err
		}
		defer a.Close()

		engine := a.Worker().Engine()
		var reviews []model.Review
		if restaurantID > 0 {
			reviews, err = engine.FetchReviewsForRestaurant(cmd.Context(), restaurantID)
		} else {
			reviews, err = engine.FetchReviews(cmd.Context())
		}
		if err != nil {
			return err
		}
		if len(reviews) == 0 {
			fmt.Println("No reviews found.")
			return nil
		}
		for _, r := range reviews {
			id := strconv.FormatInt(r.ID, 10)
			if r.Pending() {
				id = r.PlaceholderID
			}
			fmt.Printf("%-10s  restaurant:%d  %-20s  %d/5  %s\n",
				id, r.RestaurantID, r.Name, r.Rating, r.Comments)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View worker lifecycle history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.Worker().History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			fmt.Println("No worker events recorded.")
			return nil
		}

		for _, ev := range events {
			duration := ""
			if ev.FinishedAt != nil {
				duration = ev.FinishedAt.Sub(ev.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-9s  %s  %-8s  %-8s  %s\n",
				ev.ID,
				ev.Kind,
				ev.StartedAt.Format("2006-01-02 15:04:05"),
				ev.Status,
				duration,
				ev.Detail,
			)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(restaurantsCmd)
	restaurantsCmd.Flags().StringP("cuisine", "c", "", "Only show this cuisine")
	restaurantsCmd.Flags().StringP("neighborhood", "b", "", "Only show this neighborhood")
	restaurantsCmd.Flags().BoolP("favorites", "f", false, "Only show favorites")
	rootCmd.AddCommand(favoriteCmd)
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.Flags().Int64P("restaurant", "r", 0, "Restaurant being reviewed")
	reviewCmd.Flags().StringP("name", "n", "", "Reviewer name")
	reviewCmd.Flags().IntP("rating", "s", 0, "Rating from 1 to 5, 0 for none")
	reviewCmd.Flags().StringP("comments", "m", "", "Review text")
	reviewCmd.MarkFlagRequired("restaurant")
	reviewCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(reviewsCmd)
	reviewsCmd.Flags().Int64P("restaurant", "r", 0, "Only show reviews of this restaurant")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of events to show")
}
