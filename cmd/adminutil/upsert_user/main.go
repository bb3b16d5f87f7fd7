// Command upsert_user writes a user record into the configured store so
// jobs and bids can show the user's name.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/workmatch/api/internal/config"
	"github.com/workmatch/api/internal/store"
	"github.com/workmatch/api/internal/user"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file")
	driver := pflag.String("store", "", "store driver: postgres or mongo")
	id := pflag.String("id", "", "user id (generated when empty)")
	name := pflag.String("name", "", "display name")
	email := pflag.String("email", "", "email address")
	role := pflag.String("role", "", "client or worker")
	pflag.Parse()

	if *name == "" || !user.ValidRole(*role) {
		log.Fatalf("usage: upsert_user --name <name> --role client|worker [--id <id>] [--email <email>]")
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *driver != "" {
		cfg.Store.Driver = *driver
	}
	if cfg.Store.Driver == config.DriverMemory {
		log.Fatalf("refusing to write to the in-memory store; pass --store postgres or --store mongo")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Open(ctx, cfg, cfg.Log.NewLogger())
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	u := user.User{ID: *id, Name: *name, Email: *email, Role: *role, CreatedAt: time.Now().UTC()}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := st.PutUser(ctx, u); err != nil {
		log.Fatalf("failed to save user: %v", err)
	}
	fmt.Printf("User %s (%s) saved as %s.\n", u.Name, u.ID, u.Role)
}
