// Command token mints a bearer token for local testing.
//
//	token -employee emp-alice -role employee
//
// The secret, issuer and lifetime come from the same configuration as the
// server, so the token is accepted by a server started alongside it.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/warp/workday/auth"
	"github.com/warp/workday/config"
	"github.com/warp/workday/generic"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	employee := flag.String("employee", "", "employee id the token is issued for")
	role := flag.String("role", string(generic.RoleEmployee), "employee, hr or admin")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	tokens := auth.NewManager(cfg.Auth, nil)
	token, err := tokens.Issue(generic.Actor{
		EmployeeID: generic.EmployeeID(*employee),
		Role:       generic.Role(*role),
	})
	if err != nil {
		log.Fatalf("cannot issue token for %q as %q: %v", *employee, *role, err)
	}
	fmt.Println(token)
}
