// Command redditwatch tails a subreddit from the terminal: it streams new
// posts (or comments) as they arrive, using credentials from a TOML file,
// environment variables, or flags.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"

	reddit "github.com/jamesprial/go-reddit-client"
)

// appConfig is the merged configuration: defaults, then the TOML file, then
// REDDITWATCH_* environment variables, each layer overriding the previous.
type appConfig struct {
	Auth struct {
		ClientID     string `koanf:"client_id"`
		ClientSecret string `koanf:"client_secret"`
		Username     string `koanf:"username"`
		Password     string `koanf:"password"`
		UserAgent    string `koanf:"user_agent"`
	} `koanf:"auth"`

	RateLimit struct {
		RequestsPerMinute float64 `koanf:"requests_per_minute"`
		Burst             int     `koanf:"burst"`
	} `koanf:"ratelimit"`
}

func loadConfig(configPath string) (*appConfig, error) {
	var k = koanf.New(".")

	k.Load(confmap.Provider(map[string]interface{}{
		"auth.user_agent":               "redditwatch/1.0",
		"ratelimit.requests_per_minute": 60.0,
		"ratelimit.burst":               10,
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./redditwatch.toml", "$HOME/.redditwatch.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	k.Load(env.Provider("REDDITWATCH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "REDDITWATCH_")), "_", ".", 1)
	}), nil)

	var config appConfig
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &config, nil
}

func buildClient(c *cli.Context) (*reddit.Client, error) {
	config, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.String("client-id") != "" {
		config.Auth.ClientID = c.String("client-id")
	}
	if c.String("client-secret") != "" {
		config.Auth.ClientSecret = c.String("client-secret")
	}
	if config.Auth.ClientID == "" {
		return nil, fmt.Errorf("client id is required (flag, config file, or REDDITWATCH_AUTH_CLIENT_ID)")
	}

	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return reddit.NewClient(&reddit.Config{
		ClientID:     config.Auth.ClientID,
		ClientSecret: config.Auth.ClientSecret,
		Username:     config.Auth.Username,
		Password:     config.Auth.Password,
		UserAgent:    config.Auth.UserAgent,
		Logger:       logger,
		RateLimit: reddit.RateLimitConfig{
			RequestsPerMinute: config.RateLimit.RequestsPerMinute,
			Burst:             config.RateLimit.Burst,
		},
	})
}

func main() {
	app := &cli.App{
		Name:  "redditwatch",
		Usage: "stream new posts and comments from a subreddit",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to TOML config file",
				EnvVars: []string{"REDDITWATCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "client-id",
				Usage:   "Reddit API client id",
				EnvVars: []string{"REDDIT_CLIENT_ID"},
			},
			&cli.StringFlag{
				Name:    "client-secret",
				Usage:   "Reddit API client secret",
				EnvVars: []string{"REDDIT_CLIENT_SECRET"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "watch",
				Usage:     "stream new posts (or comments) from a subreddit",
				ArgsUsage: "<subreddit>",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Value: 10 * time.Second,
						Usage: "polling interval",
					},
					&cli.BoolFlag{
						Name:  "comments",
						Usage: "stream comments instead of posts",
					},
				},
				Action: runWatch,
			},
			{
				Name:   "me",
				Usage:  "show the authenticated account",
				Action: runMe,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runWatch(c *cli.Context) error {
	subreddit := c.Args().First()
	if subreddit == "" {
		return fmt.Errorf("subreddit argument is required")
	}

	client, err := buildClient(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	interval := c.Duration("interval")
	if c.Bool("comments") {
		return watchComments(ctx, client, subreddit, interval)
	}
	return watchPosts(ctx, client, subreddit, interval)
}

func watchPosts(ctx context.Context, client *reddit.Client, subreddit string, interval time.Duration) error {
	fmt.Printf("Watching r/%s for new posts (interval %s)...\n", subreddit, interval)
	stream := client.StreamNewPosts(subreddit, interval)
	for {
		batch, err := stream.NextBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, post := range batch {
			fmt.Printf("[%s] %s (by u/%s, score %d)\n",
				post.CreatedTime().Format(time.TimeOnly), post.Title, post.Author, post.Score)
		}
	}
}

func watchComments(ctx context.Context, client *reddit.Client, subreddit string, interval time.Duration) error {
	fmt.Printf("Watching r/%s for new comments (interval %s)...\n", subreddit, interval)
	stream := client.StreamComments(subreddit, interval)
	for {
		batch, err := stream.NextBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, comment := range batch {
			body := comment.Body
			if len(body) > 100 {
				body = body[:100] + "..."
			}
			fmt.Printf("[%s] u/%s: %s\n",
				comment.CreatedTime().Format(time.TimeOnly), comment.Author, body)
		}
	}
}

func runMe(c *cli.Context) error {
	client, err := buildClient(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	me, err := client.Me(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as u/%s\n", me.Name)
	fmt.Printf("  link karma:    %d\n", me.LinkKarma)
	fmt.Printf("  comment karma: %d\n", me.CommentKarma)
	return nil
}
