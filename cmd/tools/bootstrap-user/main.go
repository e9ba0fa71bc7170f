// Command bootstrap-user seeds or updates an account in the datastore so a
// fresh deployment has a known login before the API accepts registrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"clipstream/internal/models"
	"clipstream/internal/storage"
)

func main() {
	var (
		jsonPath string
		username string
		email    string
		fullName string
		password string
	)

	flag.StringVar(&jsonPath, "json", "data/store.json", "Path to the JSON datastore (store.json)")
	flag.StringVar(&username, "username", "", "Username for the account")
	flag.StringVar(&email, "email", "", "Email address for the account")
	flag.StringVar(&fullName, "name", "", "Full name for the account")
	flag.StringVar(&password, "password", "", "Password for the account")
	flag.Parse()

	if strings.TrimSpace(username) == "" {
		fatalf("--username is required")
	}
	if strings.TrimSpace(email) == "" {
		fatalf("--email is required")
	}
	if len(password) < 8 {
		fatalf("--password must be at least 8 characters")
	}
	if strings.TrimSpace(fullName) == "" {
		fullName = username
	}

	store, err := storage.NewStorage(jsonPath)
	if err != nil {
		fatalf("open datastore: %v", err)
	}

	user, created, err := bootstrapUser(store, username, email, fullName, password)
	if err != nil {
		fatalf("bootstrap user: %v", err)
	}

	state := "updated"
	if created {
		state = "created"
	}
	fmt.Printf("User %s (%s) %s successfully.\n", user.Username, user.Email, state)
	fmt.Println("Remember to rotate this password after the first login.")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func bootstrapUser(store *storage.Storage, username, email, fullName, password string) (models.User, bool, error) {
	ctx := context.Background()
	normalized := strings.ToLower(strings.TrimSpace(username))

	existing, found, err := store.GetUserByUsername(ctx, normalized)
	if err != nil {
		return models.User{}, false, err
	}
	if !found {
		user, err := store.CreateUser(ctx, storage.CreateUserParams{
			Username: username,
			Email:    email,
			FullName: fullName,
			Password: password,
		})
		if err != nil {
			return models.User{}, false, err
		}
		return user, true, nil
	}

	return updateUser(ctx, store, existing, email, fullName, password)
}

func updateUser(ctx context.Context, store *storage.Storage, existing models.User, email, fullName, password string) (models.User, bool, error) {
	var update storage.UserUpdate
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	if existing.Email != normalizedEmail {
		update.Email = &normalizedEmail
	}
	trimmedName := strings.TrimSpace(fullName)
	if existing.FullName != trimmedName {
		update.FullName = &trimmedName
	}

	user := existing
	if update.Email != nil || update.FullName != nil {
		updated, err := store.UpdateUserDetails(ctx, existing.ID, update)
		if err != nil {
			return models.User{}, false, err
		}
		user = updated
	}

	user, err := store.SetUserPassword(ctx, user.ID, password)
	if err != nil {
		return models.User{}, false, err
	}
	return user, false, nil
}
