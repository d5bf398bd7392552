package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/security"
	"github.com/joho/godotenv"
)

// Prints a bearer token for the SMS relay or an operator tool.
func main() {
	client := flag.String("client", "sms-relay", "client name recorded as the actor")
	scopes := flag.String("scopes", security.ScopeSMS, "comma separated scopes")
	ttl := flag.Duration("ttl", 365*24*time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	secret := os.Getenv("JWT_SECRET_KEY")
	if len(secret) < 32 {
		log.Fatal("JWT_SECRET_KEY must be set and at least 32 characters")
	}

	var list []string
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}

	token, err := security.GenerateIntakeToken(*client, list, *ttl, secret)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}
