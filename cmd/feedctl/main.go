// Command feedctl runs maintenance jobs against the feed store.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"veritas/internal/bootstrap"
	"veritas/internal/cache"
	"veritas/internal/config"
	"veritas/internal/featureflags"
	"veritas/internal/seed"
	"veritas/internal/service"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "feedctl",
		Usage: "maintenance tasks for the veritas feed",
		Commands: []*cli.Command{
			{
				Name:   "seed",
				Usage:  "fill the store with generated users and posts",
				Action: runSeed,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "users", Value: seed.DefaultOptions().NumUsers},
					&cli.IntFlag{Name: "posts", Value: seed.DefaultOptions().NumPosts},
					&cli.IntFlag{Name: "days", Value: seed.DefaultOptions().MaxDays, Usage: "spread posts over this many days"},
					&cli.Int64Flag{Name: "seed", Usage: "random seed for reproducible data"},
					&cli.BoolFlag{Name: "force", Usage: "seed even when posts already exist"},
				},
			},
			{
				Name:   "rescore",
				Usage:  "re-run fact checking for posts still labelled unverified",
				Action: runRescore,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 100, EnvVars: []string{"RESCORE_LIMIT"}},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadRuntime(cmd *cli.Context) (*config.Config, *bootstrap.Runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	rt, err := bootstrap.InitRuntime(cmd.Context, cfg, bootstrap.Options{SkipMedia: true})
	if err != nil {
		return nil, nil, err
	}
	return cfg, rt, nil
}

var runSeed = func(cmd *cli.Context) error {
	_, rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(cmd.Context) }()

	opts := seed.DefaultOptions()
	opts.NumUsers = cmd.Int("users")
	opts.NumPosts = cmd.Int("posts")
	opts.MaxDays = cmd.Int("days")
	opts.Seed = cmd.Int64("seed")
	opts.Force = cmd.Bool("force")

	res, err := seed.Run(cmd.Context, rt.Posts, rt.Profiles, opts)
	if err != nil {
		return err
	}
	if res.Skipped {
		log.Println("store already populated; pass --force to add more")
		return nil
	}
	log.Printf("seeded %d users, %d posts, %d comments, %d reactions", res.Users, res.Posts, res.Comments, res.Toggles)
	return nil
}

var runRescore = func(cmd *cli.Context) error {
	cfg, rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(cmd.Context) }()

	svc := service.NewPostService(service.PostServiceDeps{
		Posts:      rt.Posts,
		Profiles:   rt.Profiles,
		Classifier: rt.Classifier,
		Flags:      featureflags.NewManager(cfg.FeatureFlags),
		Feed:       cache.NewFeedCache(rt.Redis, time.Duration(cfg.FeedCacheTTLSeconds)*time.Second),
	})

	n, err := svc.Rescore(cmd.Context, cmd.Int("limit"))
	if err != nil {
		return err
	}
	log.Printf("rescored %d posts", n)
	return nil
}
