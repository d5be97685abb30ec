package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eventlytics/go-auth-client/api"
	"github.com/eventlytics/go-auth-client/identity"
	"github.com/eventlytics/go-auth-client/internal/config"
	"github.com/eventlytics/go-auth-client/internal/logging"
	"github.com/eventlytics/go-auth-client/session"
	"github.com/eventlytics/go-auth-client/store"
	"github.com/eventlytics/go-auth-client/token"
)

const appName = "sessionctl"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	log := logging.New(cfg.Environment)

	if len(args) == 0 {
		displayAppname(appName)
		usage()
		return nil
	}

	tokenStore, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("buildStore: %w", err)
	}

	manager, err := session.New(cfg.API.BaseURL, tokenStore,
		session.WithLogger(log),
		session.WithTimeout(cfg.API.Timeout),
	)
	if err != nil {
		return fmt.Errorf("session.New: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	manager.Bootstrap(ctx)

	switch args[0] {
	case "login":
		return loginCmd(ctx, manager, args[1:])
	case "logout":
		return logoutCmd(ctx, manager)
	case "whoami":
		return whoamiCmd(manager)
	case "status":
		return statusCmd(ctx, manager, log)
	case "register":
		return registerCmd(ctx, manager, args[1:])
	case "change-password":
		return changePasswordCmd(ctx, manager, args[1:])
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func buildStore(cfg *config.Config) (store.TokenStore, error) {
	if cfg.Store.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		return store.NewRedisStore(client, cfg.Store.RedisPrefix), nil
	}

	path := cfg.Store.TokenFile
	if !filepath.IsAbs(path) {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("os.UserHomeDir: %w", err)
		}
		path = filepath.Join(home, path)
	}
	return store.NewFileStore(path), nil
}

func loginCmd(ctx context.Context, manager *session.Manager, args []string) error {
	flags := flag.NewFlagSet("login", flag.ExitOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	flags.Parse(args) //nolint:errcheck

	if *email == "" || *password == "" {
		return fmt.Errorf("login requires -email and -password")
	}
	if !manager.Login(ctx, *email, *password) {
		return fmt.Errorf("login failed")
	}

	user := manager.User()
	fmt.Printf("Logged in as %s (%s)\n", user.Email, user.Role)
	return nil
}

func logoutCmd(ctx context.Context, manager *session.Manager) error {
	manager.Logout(ctx)
	// Let the best-effort blacklist call finish before the process exits.
	manager.Wait()
	fmt.Println("Logged out")
	return nil
}

func whoamiCmd(manager *session.Manager) error {
	user := manager.User()
	if user == nil {
		return fmt.Errorf("not logged in")
	}
	fmt.Printf("%s\t%s\t%s\n", user.Email, user.FullName, user.Role)
	if manager.HasRole(identity.RoleAdmin) {
		fmt.Println("(administrator)")
	}
	return nil
}

func statusCmd(ctx context.Context, manager *session.Manager, log zerolog.Logger) error {
	accessToken := manager.AccessToken()
	if accessToken == "" {
		fmt.Println("No active session")
		return nil
	}

	claims, err := token.Parse(accessToken)
	if err != nil {
		log.Warn().Err(err).Msg("could not decode access token claims")
	} else {
		fmt.Printf("Token subject: %s\n", claims.UserID)
		fmt.Printf("Token expires: %s\n", claims.ExpiresAt.Format(time.RFC3339))
		if claims.ExpiresWithin(time.Now(), 1*time.Minute) {
			fmt.Println("Token expires within the next minute")
		}
	}

	verification, err := manager.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	fmt.Printf("Server accepts token: %t (user %s, role %s)\n", verification.Valid, verification.Email, verification.Role)
	return nil
}

func registerCmd(ctx context.Context, manager *session.Manager, args []string) error {
	flags := flag.NewFlagSet("register", flag.ExitOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	fullName := flags.String("name", "", "full name")
	role := flags.String("role", string(identity.RoleAnalyst), "role: admin, manager or analyst")
	flags.Parse(args) //nolint:errcheck

	ok := manager.Register(ctx, api.RegisterRequest{
		Email:    *email,
		Password: *password,
		FullName: *fullName,
		Role:     identity.Role(*role),
	})
	if !ok {
		return fmt.Errorf("registration failed")
	}
	fmt.Printf("Account created for %s\n", *email)
	return nil
}

func changePasswordCmd(ctx context.Context, manager *session.Manager, args []string) error {
	flags := flag.NewFlagSet("change-password", flag.ExitOnError)
	current := flags.String("current", "", "current password")
	newPassword := flags.String("new", "", "new password")
	flags.Parse(args) //nolint:errcheck

	if !manager.ChangePassword(ctx, *current, *newPassword) {
		return fmt.Errorf("password change failed")
	}
	fmt.Println("Password changed")
	return nil
}

func usage() {
	fmt.Println("Usage: sessionctl <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login            -email -password")
	fmt.Println("  logout")
	fmt.Println("  whoami")
	fmt.Println("  status")
	fmt.Println("  register         -email -password -name [-role]")
	fmt.Println("  change-password  -current -new")
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
