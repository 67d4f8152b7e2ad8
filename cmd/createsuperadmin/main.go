// Command createsuperadmin provisions the first SuperAdmin account directly
// against the database. Regular registration cannot grant elevated roles, so
// bootstrapping happens here.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/sessionworks/authd/internal/server/config"
	"github.com/sessionworks/authd/internal/server/hashing"
	"github.com/sessionworks/authd/internal/server/models"
	"github.com/sessionworks/authd/internal/server/repositories/repomanager"
	"github.com/sessionworks/authd/internal/server/services"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func promptPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return nil, err
	}
	return pw, nil
}

func main() {
	defaults := &config.Config{}
	defaults.LoadDefaults()

	dsn := flag.String("d", defaults.DatabaseDSN, "database DSN")
	email := flag.String("e", "", "email address (required)")
	username := flag.String("u", "", "username (required)")
	firstName := flag.String("f", "", "first name")
	lastName := flag.String("l", "", "last name")
	flag.Parse()

	if *email == "" || *username == "" {
		flag.Usage()
		os.Exit(2)
	}

	password, err := promptPassword("Enter password: ")
	if err != nil {
		log.Fatalf("reading password: %v", err)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		log.Fatalf("reading password: %v", err)
	}
	if string(password) != string(confirm) {
		log.Fatal("passwords do not match")
	}

	ctx := context.Background()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migrations error: %v", err)
	}

	users := services.NewUserService(db, repos, hashing.NewBcryptHasher(defaults.BcryptCost))

	user, err := users.Create(ctx, services.CreateUserParams{
		Username:  *username,
		FirstName: *firstName,
		LastName:  *lastName,
		Email:     *email,
		Role:      models.RoleSuperAdmin,
		Password:  string(password),
	}, models.RoleSuperAdmin)
	if err != nil {
		log.Fatalf("creating user: %v", err)
	}

	fmt.Printf("SuperAdmin %s (%s) created\n", user.Username, user.Email)
}
