package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"skinscan/auth"
	"skinscan/config"
	"skinscan/store"
)

func main() {
	email := flag.String("email", "", "email of the user to reset")
	password := flag.String("password", "", "new plaintext password (min 6 chars)")
	flag.Parse()
	if *email == "" || *password == "" {
		log.Fatal("--email and --password are required")
	}
	if len(*password) < 6 {
		log.Fatal("password too short (min 6)")
	}

	db, err := store.Open(config.Load())
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	ctx := context.Background()
	users := store.NewUserRepo(db)
	user, err := users.FindByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("user not found: %v", err)
	}
	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("bcrypt: %v", err)
	}
	if err := users.UpdatePassword(ctx, user.ID, hash); err != nil {
		log.Fatalf("update failed: %v", err)
	}
	fmt.Printf("Password reset for user %s\n", user.Email)
}
