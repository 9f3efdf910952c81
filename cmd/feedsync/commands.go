package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plexfeed/feedsync/api"
	"github.com/plexfeed/feedsync/config"
	"github.com/plexfeed/feedsync/feed"
)

// runApp boots the application, runs fn, and tears everything down.
func runApp(ctx context.Context, fn func(context.Context, *App) error) error {
	app := NewApp(cfg, logger)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Shutdown()
	return fn(ctx, app)
}

func feedCmd() *cobra.Command {
	var (
		followingOnly bool
		author        string
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Fetch and print the composed timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app := NewApp(cfg, logger)
			app.query = api.FeedQuery{FollowingOnly: followingOnly, Author: author}
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown()

			items, err := app.engine.Timeline(ctx)
			if err != nil {
				return err
			}
			printTimeline(items)
			return nil
		},
	}

	cmd.Flags().BoolVar(&followingOnly, "following", false, "Only accounts the viewer follows")
	cmd.Flags().StringVar(&author, "author", "", "Only posts by this handle")
	return cmd
}

func postCmd() *cobra.Command {
	var (
		images    []string
		fromDraft string
	)

	cmd := &cobra.Command{
		Use:   "post [content]",
		Short: "Publish a post",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), func(ctx context.Context, app *App) error {
				content := strings.Join(args, " ")

				if fromDraft != "" {
					store, err := app.Drafts()
					if err != nil {
						return err
					}
					d, err := store.Get(ctx, fromDraft)
					if err != nil {
						return err
					}
					content = d.Content
					images = d.ImageURLs

					p, err := app.engine.CreatePost(ctx, content, images)
					if err != nil {
						return err
					}
					if err := store.Delete(ctx, fromDraft); err != nil {
						app.logger.Warn("published draft could not be removed", "draft_id", fromDraft, "error", err)
					}
					fmt.Printf("✓ Posted %s\n", p.ID)
					return nil
				}

				if content == "" {
					return fmt.Errorf("post content required (or use --from-draft)")
				}
				p, err := app.engine.CreatePost(ctx, content, images)
				if err != nil {
					return err
				}
				fmt.Printf("✓ Posted %s\n", p.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&images, "image", nil, "Image URL to attach (repeatable)")
	cmd.Flags().StringVar(&fromDraft, "from-draft", "", "Publish a stored draft by ID")
	return cmd
}

func commentCmd() *cobra.Command {
	var images []string

	cmd := &cobra.Command{
		Use:   "comment <post-id> <content>",
		Short: "Comment on a post",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), func(ctx context.Context, app *App) error {
				if err := app.engine.Refresh(ctx); err != nil {
					return err
				}
				parent, err := app.engine.AddComment(ctx, args[0], args[1], images)
				if err != nil {
					return err
				}
				fmt.Printf("✓ Commented on %s (%d replies)\n", parent.ID, parent.ReplyCount)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&images, "image", nil, "Image URL to attach (repeatable)")
	return cmd
}

func likeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <post-id> [comment-id]",
		Short: "Toggle a like on a post or comment",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), func(ctx context.Context, app *App) error {
				if err := app.engine.Refresh(ctx); err != nil {
					return err
				}

				if len(args) == 2 {
					if err := app.engine.ToggleCommentLike(ctx, args[0], args[1]); err != nil {
						return err
					}
					fmt.Printf("✓ Toggled like on comment %s\n", args[1])
					return nil
				}

				if err := app.engine.ToggleLike(ctx, args[0]); err != nil {
					return err
				}
				if p, ok := app.engine.Cache().Get(args[0]); ok {
					fmt.Printf("✓ %s: liked=%v likes=%d\n", p.ID, p.IsLikedByMe, p.LikeCount)
				} else {
					fmt.Printf("✓ Toggled like on %s\n", args[0])
				}
				return nil
			})
		},
	}
}

func repostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repost <post-id>",
		Short: "Toggle a repost",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), func(ctx context.Context, app *App) error {
				if err := app.engine.Refresh(ctx); err != nil {
					return err
				}
				if err := app.engine.ToggleRepost(ctx, args[0]); err != nil {
					return err
				}
				if p, ok := app.engine.Cache().Get(args[0]); ok {
					fmt.Printf("✓ %s: reposted=%v reposts=%d\n", p.ID, p.IsRetweetedByMe, p.RetweetCount)
				} else {
					fmt.Printf("✓ Toggled repost on %s\n", args[0])
				}
				return nil
			})
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), func(ctx context.Context, app *App) error {
				if err := app.engine.DeletePost(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("✓ Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func draftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Manage post drafts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), func(ctx context.Context, app *App) error {
				store, err := app.Drafts()
				if err != nil {
					return err
				}
				list, err := store.List(ctx)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Println("No drafts.")
					return nil
				}
				for _, d := range list {
					fmt.Printf("%s  %s  %s\n", d.ID, d.UpdatedAt.Format("2006-01-02 15:04"), truncate(d.Content, 60))
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "new <content>",
		Short: "Store a new draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), func(ctx context.Context, app *App) error {
				store, err := app.Drafts()
				if err != nil {
					return err
				}
				d, err := store.Create(ctx, args[0], nil)
				if err != nil {
					return err
				}
				fmt.Printf("✓ Draft %s saved\n", d.ID)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <draft-id>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), func(ctx context.Context, app *App) error {
				store, err := app.Drafts()
				if err != nil {
					return err
				}
				if err := store.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("✓ Draft %s removed\n", args[0])
				return nil
			})
		},
	})

	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Mirror the feed and apply live events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runApp(ctx, func(ctx context.Context, app *App) error {
				if err := app.engine.Refresh(ctx); err != nil {
					return fmt.Errorf("initial feed fetch: %w", err)
				}
				fmt.Printf("Watching feed (%d posts cached)\n", app.engine.Cache().Len())

				if err := app.tracker.Start(); err != nil {
					return fmt.Errorf("start unread tracker: %w", err)
				}

				subDone := make(chan error, 1)
				go func() {
					subDone <- app.subscriber.Run(ctx)
				}()

				// Live-reload the channel cap when the project config changes.
				updates, stopWatch, err := watchProjectConfig(ctx, app)
				if err != nil {
					app.logger.Warn("config watching disabled", "error", err)
				} else if stopWatch != nil {
					defer stopWatch()
				}

				for {
					select {
					case <-ctx.Done():
						<-subDone
						fmt.Println("\nStopped.")
						return nil
					case err := <-subDone:
						return err
					case c, ok := <-updates:
						if !ok {
							updates = nil
							continue
						}
						app.subscriber.SetMaxPostChannels(c.Realtime.MaxPostChannels)
						app.logger.Info("Applied config reload",
							"max_post_channels", c.Realtime.MaxPostChannels)
					}
				}
			})
		},
	}
}

// watchProjectConfig starts a config file watcher when a project config
// exists. Returns a nil channel (never ready) when there is nothing to
// watch.
func watchProjectConfig(ctx context.Context, app *App) (<-chan *config.Config, func(), error) {
	path := config.NewLoader(app.logger).FindProjectConfig()
	if path == "" {
		return nil, nil, nil
	}

	w, err := config.NewWatcher(path, app.logger)
	if err != nil {
		return nil, nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return nil, nil, err
	}
	return w.Updates(), func() { _ = w.Stop() }, nil
}

func printTimeline(items []feed.Item) {
	if len(items) == 0 {
		fmt.Println("Feed is empty.")
		return
	}
	for _, it := range items {
		p := it.Post
		if p.RepostContext != nil {
			fmt.Printf("↻ reposted by %s (@%s)\n", p.RepostContext.By.Name, p.RepostContext.By.Handle)
		}
		fmt.Printf("%s (@%s) · %s\n", p.Author.Name, p.Author.Handle, it.SortTime.Format("2006-01-02 15:04"))
		fmt.Println(p.Content)
		fmt.Printf("  ♥ %d  ↻ %d  💬 %d\n\n", p.LikeCount, it.RepostTotal, p.ReplyCount)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
