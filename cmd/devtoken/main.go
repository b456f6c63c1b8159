// Command devtoken prints an access token for local testing of the
// booking API.
//
//	devtoken --user 42 --role Student --ttl 1h
//
// The signing secret is read from JWT_SECRET (a .env file is honoured).
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/iliyamo/study-space-booking/internal/model"
	"github.com/iliyamo/study-space-booking/internal/utils"
)

func main() {
	userID := flag.Uint64P("user", "u", 1, "user id placed in the sub claim")
	role := flag.StringP("role", "r", model.RoleStudent, "Student, Space_Manager or Administrator")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	switch *role {
	case model.RoleStudent, model.RoleSpaceManager, model.RoleAdministrator:
	default:
		log.Fatalf("unknown role %q", *role)
	}
	tok, err := utils.NewAccessToken(secret, *userID, *role, *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
