package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"heron/internal/auth"
	"heron/internal/conf"
)

// relaytoken mints a relay token for an account. The token is
// presented in the password slot of SMTP AUTH PLAIN.
func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	secret := flag.String("secret", "", "Signing secret (overrides config)")
	username := flag.String("username", "", "Account the token is issued for")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *username == "" {
		log.Fatal("Username is required (-username)")
	}

	signingSecret := *secret
	if signingSecret == "" {
		cfg, err := conf.LoadConfig(*configPath)
		if err != nil {
			log.Fatal("Failed to load config:", err)
		}
		signingSecret = cfg.RelayTokenSecret
	}
	if signingSecret == "" {
		log.Fatal("No signing secret: set relay_token_secret in config or pass -secret")
	}

	issuer, err := auth.NewTokenIssuer(signingSecret)
	if err != nil {
		log.Fatal("Failed to initialize token issuer:", err)
	}

	token, err := issuer.Issue(*username, *ttl)
	if err != nil {
		log.Fatal("Failed to issue token:", err)
	}

	fmt.Println(token)
}
