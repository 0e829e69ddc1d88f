// Command seed grants admin rights to a mobile number, creating the account
// when it does not exist yet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/agrihub/agrihub/internal/config"
	"github.com/agrihub/agrihub/internal/infra"
	"github.com/agrihub/agrihub/internal/logging"
	"github.com/agrihub/agrihub/internal/user"
	"github.com/agrihub/agrihub/internal/validation"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	mobile := fs.String("mobile", "", "10 digit mobile number of the admin")
	first := fs.String("first", "Admin", "first name used when the account is created")
	last := fs.String("last", "User", "last name used when the account is created")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !validation.ValidMobile(*mobile) {
		fmt.Fprintln(os.Stderr, "-mobile must be 10 digits")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	logger := logging.New(cfg.LogLevel, cfg.AppName, cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repo user.Repository
	switch {
	case cfg.MongoURI != "":
		client, db, err := infra.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Error("connect mongo", "error", err)
			return 1
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		mongoRepo := user.NewMongoRepository(db)
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			logger.Error("ensure indexes", "error", err)
			return 1
		}
		repo = mongoRepo
	case cfg.DatabaseURL != "":
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			return 1
		}
		defer pool.Close()
		pgRepo := user.NewPostgresRepository(pool)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			logger.Error("ensure schema", "error", err)
			return 1
		}
		repo = pgRepo
	default:
		logger.Error("MONGO_URI or DATABASE_URL is required")
		return 1
	}

	admin, err := user.NewService(repo).EnsureAdmin(ctx, user.CreateInput{FirstName: *first, LastName: *last, Mobile: *mobile})
	if err != nil {
		logger.Error("ensure admin", "error", err)
		return 1
	}
	logger.Info("admin ready", "user_id", admin.ID, "mobile", admin.Mobile)
	return 0
}
