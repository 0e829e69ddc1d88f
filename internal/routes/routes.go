package routes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/agrihub/agrihub/internal/auth"
	"github.com/agrihub/agrihub/internal/config"
	"github.com/agrihub/agrihub/internal/middleware"
	"github.com/agrihub/agrihub/internal/notification"
	"github.com/agrihub/agrihub/internal/otp"
	"github.com/agrihub/agrihub/internal/session"
	"github.com/agrihub/agrihub/internal/sweeper"
	"github.com/agrihub/agrihub/internal/user"
)

// Deps aggregates shared dependencies required to wire routes. Every backend
// is optional; absent ones fall back to in-memory stores.
type Deps struct {
	Cfg      config.Config
	Mongo    *mongo.Database
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
	Sweeper  *sweeper.Sweeper
	// Users overrides the repository chosen from Mongo/DB.
	Users user.Repository
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDevelopment() && d.Mongo == nil && d.DB == nil && d.Users == nil {
		return fmt.Errorf("a user database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users, err := newUserRepository(ctx, d)
	if err != nil {
		return err
	}
	store, err := newSessionStore(ctx, d)
	if err != nil {
		return err
	}
	otps := newOTPStore(d)

	notifier := d.Notifier
	if notifier == nil {
		notifier = newNotifier(d)
	}

	sessions := session.NewManager(store, d.Cfg.SessionSecret, session.CookieConfig{
		Name:     d.Cfg.SessionCookie,
		SameSite: d.Cfg.SessionSameSite,
		Secure:   d.Cfg.IsProduction(),
		TTL:      d.Cfg.SessionTTL,
	})

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     d.Cfg.FrontendURL,
		AllowCredentials: true,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Content-Type,Authorization",
	}))
	app.Use(middleware.Session(sessions, d.Logger))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	userSvc := user.NewService(users)
	authSvc := auth.NewService(userSvc, otps, notifier, d.Logger, auth.Config{
		OTPTTL:      d.Cfg.OTPTTL,
		MaxAttempts: d.Cfg.OTPMaxAttempts,
		CountryCode: d.Cfg.SMSCountryCode,
	})
	authHandler := auth.NewHandler(authSvc, userSvc, sessions, d.Logger)
	userHandler := user.NewHandler(userSvc)

	otpLimiter, err := middleware.NewOTPLimiter(d.Cache, d.Cfg.OTPRateLimit)
	if err != nil {
		return err
	}

	api := app.Group("/api")
	RegisterUserRoutes(api, authHandler, userHandler, middleware.OTPRateLimit(otpLimiter, d.Logger))

	return nil
}

func newUserRepository(ctx context.Context, d Deps) (user.Repository, error) {
	switch {
	case d.Users != nil:
		return d.Users, nil
	case d.Mongo != nil:
		repo := user.NewMongoRepository(d.Mongo)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	case d.DB != nil:
		repo := user.NewPostgresRepository(d.DB)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		d.Logger.Warn("no user database configured, using in-memory users")
		return user.NewMemoryRepository(), nil
	}
}

func newSessionStore(ctx context.Context, d Deps) (session.Store, error) {
	switch {
	case d.Cache != nil:
		return session.NewRedisStore(d.Cache), nil
	case d.Mongo != nil:
		store := session.NewMongoStore(d.Mongo)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		if d.Sweeper != nil {
			d.Sweeper.Register("sessions", store)
		}
		return store, nil
	default:
		store := session.NewMemoryStore()
		if d.Sweeper != nil {
			d.Sweeper.Register("sessions", store)
		}
		return store, nil
	}
}

func newOTPStore(d Deps) otp.Store {
	if d.Cache != nil {
		return otp.NewRedisStore(d.Cache)
	}
	store := otp.NewMemoryStore()
	if d.Sweeper != nil {
		d.Sweeper.Register("otp", store)
	}
	return store
}

func newNotifier(d Deps) notification.Notifier {
	if d.Cfg.TwilioEnabled() {
		return notification.NewTwilioNotifier(d.Cfg.TwilioAccountSID, d.Cfg.TwilioAuthToken, d.Cfg.TwilioPhoneNumber, d.Logger)
	}
	d.Logger.Warn("twilio credentials missing, otp messages will only be logged")
	return notification.NewLoggerNotifier(d.Logger)
}
