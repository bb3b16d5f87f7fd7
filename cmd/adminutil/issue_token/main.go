// Command issue_token mints a bearer token for local testing.
//
//	go run ./cmd/adminutil/issue_token --id u-123 --role worker
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/workmatch/api/internal/auth"
	"github.com/workmatch/api/internal/user"
)

func main() {
	id := pflag.String("id", "", "user id to put in the token")
	role := pflag.String("role", "", "client or worker")
	ttl := pflag.Duration("ttl", 24*time.Hour, "token lifetime")
	pflag.Parse()

	if *id == "" || !user.ValidRole(*role) {
		log.Fatalf("usage: issue_token --id <user-id> --role client|worker [--ttl 24h]")
	}

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatalf("JWT_SECRET is not set")
	}

	tok, err := auth.Issue([]byte(secret), *id, *role, time.Now(), *ttl)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(tok)
}
