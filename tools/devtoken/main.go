package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/huddlecal/huddle/libs/auth"
	"github.com/huddlecal/huddle/libs/config"
)

// devtoken prints a bearer token for local calls against calendar-service.
func main() {
	var (
		secret = flag.String("secret", config.String("JWT_SECRET", ""), "HS256 signing secret")
		sub    = flag.String("sub", "host-1", "user id (token subject)")
		name   = flag.String("name", "", "display name")
		role   = flag.String("role", auth.RoleHost, "host or member")
		ttl    = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("JWT_SECRET is required")
	}
	if *role != auth.RoleHost && *role != auth.RoleMember {
		fatal("role must be host or member")
	}

	tok, err := auth.SignHS256(auth.NewClaims(*sub, *name, *role, *ttl), *secret)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Println(tok)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
