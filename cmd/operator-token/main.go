// Command operator-token mints a bearer token for the operator API.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"lesson-pipeline/internal/config"
	"lesson-pipeline/internal/infra/api"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	subject := flag.String("sub", "", "token subject (operator email or name)")
	role := flag.String("role", api.RoleOperator, "operator|admin")
	ttl := flag.Duration("ttl", 0, "token lifetime (default api.token_ttl)")
	flag.Parse()

	if *subject == "" {
		log.Fatal("-sub is required")
	}
	if *role != api.RoleOperator && *role != api.RoleAdmin {
		log.Fatalf("unknown role %q", *role)
	}

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lifetime := cfg.API.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	auth, err := api.NewAuthManager(cfg.API.JWTSecret, lifetime)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	tok, err := auth.Mint(*subject, *role)
	if err != nil {
		log.Fatalf("mint: %v", err)
	}
	fmt.Println(tok)
	log.Printf("token for %s (%s) expires %s", *subject, *role, time.Now().Add(lifetime).Format(time.RFC3339))
}
