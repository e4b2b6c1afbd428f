package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"skinscan/auth"
	"skinscan/config"
	"skinscan/models"
	"skinscan/store"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Println("usage: go run ./cmd/create_admin <name> <email> <password>")
		os.Exit(2)
	}
	name, email, password := os.Args[1], os.Args[2], os.Args[3]
	if len(password) < 6 {
		log.Fatal("password too short (min 6)")
	}

	cfg := config.Load()
	db, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	ctx := context.Background()
	users := store.NewUserRepo(db)

	if existing, err := users.FindByEmail(ctx, email); err == nil {
		fmt.Printf("user %s already exists (id=%d role=%s)\n", existing.Email, existing.ID, existing.Role)
		os.Exit(0)
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Fatalf("lookup failed: %v", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("bcrypt failed: %v", err)
	}
	user := &models.User{Name: name, Email: email, Password: hash, Role: models.RoleAdmin}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("created admin %s id=%d\n", user.Email, user.ID)
}
