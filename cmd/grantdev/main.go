// Command grantdev manages developer access grants from the command line.
// Grants control access to the /api/admin surface and are intentionally not
// manageable through the public API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/app"
	"github.com/agrigpt/backend/internal/database"
	"github.com/agrigpt/backend/internal/services"
	"github.com/agrigpt/backend/pkg/logger"
)

const usage = `Usage: grantdev [-config <path>] <command> [arguments]

Commands:
  add <email>      grant developer access to the account with this email
  remove <email>   revoke developer access from the account with this email
  list             print all current developer grants
`

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("grantdev", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Keep CLI output clean; only warnings and above reach the terminal.
	if err := logger.Init("warn"); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg.Database.DatabaseSettings())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDatabase(db)

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return fmt.Errorf("auto-migrate database: %w", err)
	}

	devs, err := services.NewDeveloperService(db)
	if err != nil {
		return fmt.Errorf("initialise developer service: %w", err)
	}

	command, commandArgs := rest[0], rest[1:]
	switch command {
	case "add":
		return addGrant(ctx, devs, commandArgs)
	case "remove":
		return removeGrant(ctx, devs, commandArgs)
	case "list":
		return listGrants(ctx, devs)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func addGrant(ctx context.Context, devs *services.DeveloperService, args []string) error {
	email, err := emailArg(args)
	if err != nil {
		return err
	}
	grant, err := devs.GrantByEmail(ctx, email)
	if err != nil {
		return err
	}
	fmt.Printf("developer access granted to %s (account %s)\n", grant.Email, grant.AccountID)
	return nil
}

func removeGrant(ctx context.Context, devs *services.DeveloperService, args []string) error {
	email, err := emailArg(args)
	if err != nil {
		return err
	}
	if err := devs.RevokeByEmail(ctx, email); err != nil {
		return err
	}
	fmt.Printf("developer access revoked from %s\n", email)
	return nil
}

func listGrants(ctx context.Context, devs *services.DeveloperService) error {
	grants, err := devs.List(ctx)
	if err != nil {
		return err
	}
	if len(grants) == 0 {
		fmt.Println("no developer grants")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tACCOUNT\tGRANTED")
	for _, grant := range grants {
		fmt.Fprintf(w, "%s\t%s\t%s\n", grant.Email, grant.AccountID, grant.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func emailArg(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New("expected exactly one email argument")
	}
	return args[0], nil
}

func loadConfig(path string) (*app.Config, error) {
	if strings.TrimSpace(path) == "" {
		return app.LoadConfig()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config path %q is not a directory", path)
	}
	return app.LoadConfig(path)
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
}
