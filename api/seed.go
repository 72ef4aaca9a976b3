/*
seed.go - Demo data for local development

PURPOSE:
  Provisions a small organisation so the API can be tried without
  setting anything up by hand: one HR manager and two employees with
  opening vacation balances, plus a pending and an approved request.

HOW SEEDING WORKS:
 1. Each demo employee is provisioned unless the id already exists
 2. Leave requests are only created for employees provisioned in this run
 3. The ids and roles are logged so tokens can be minted with cmd/token

USAGE:
  workday-server -seed
  or seed.demo: true in config.yaml

SEE ALSO:
  - cmd/server/main.go: Calls SeedDemo at startup
  - cmd/token/main.go: Mints bearer tokens for the seeded ids
*/
package api

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/workday/generic"
	"github.com/warp/workday/timeoff"
)

// =============================================================================
// DEMO DEFINITIONS
// =============================================================================

type demoEmployee struct {
	ID      generic.EmployeeID
	Name    string
	Email   string
	Role    generic.Role
	Opening int
}

var demoEmployees = []demoEmployee{
	{ID: "hr-demo", Name: "Hannah Reyes", Email: "hannah@example.com", Role: generic.RoleHR, Opening: 22},
	{ID: "emp-alice", Name: "Alice Johnson", Email: "alice@example.com", Role: generic.RoleEmployee, Opening: 22},
	{ID: "emp-bob", Name: "Bob Martin", Email: "bob@example.com", Role: generic.RoleEmployee, Opening: 15},
}

// =============================================================================
// LOADER
// =============================================================================

// SeedDemo provisions the demo organisation. It is safe to run on every
// start: existing employees are left alone.
func (h *Handler) SeedDemo(ctx context.Context) error {
	admin := generic.SystemActor
	created := make(map[generic.EmployeeID]bool)

	for _, d := range demoEmployees {
		_, err := h.Leave.Employee(ctx, admin, d.ID)
		if err == nil {
			continue
		}
		if !generic.IsNotFound(err) {
			return fmt.Errorf("check demo employee %s: %w", d.ID, err)
		}
		if _, err := h.Leave.ProvisionEmployee(ctx, admin, timeoff.NewEmployee{
			ID:             d.ID,
			Name:           d.Name,
			Email:          d.Email,
			Role:           d.Role,
			OpeningBalance: generic.NewAmountFromInt(d.Opening, generic.UnitDays),
		}); err != nil {
			return fmt.Errorf("provision demo employee %s: %w", d.ID, err)
		}
		created[d.ID] = true
		h.Logger.Info("demo employee ready",
			zap.String("employee_id", string(d.ID)),
			zap.String("role", string(d.Role)),
		)
	}

	// Leave starts on the Monday two weeks out so it is never a weekend range.
	today := generic.Today(h.Clock)
	monday := today.AddDays(14)
	for monday.Weekday() != time.Monday {
		monday = monday.AddDays(1)
	}

	if created["emp-alice"] {
		alice := generic.Actor{EmployeeID: "emp-alice", Role: generic.RoleEmployee}
		if _, err := h.Leave.Create(ctx, alice, timeoff.CreateInput{
			EmployeeID: alice.EmployeeID,
			Kind:       timeoff.KindVacation,
			StartDate:  monday,
			EndDate:    monday.AddDays(4),
			Note:       "Family trip",
		}); err != nil {
			return fmt.Errorf("seed pending request: %w", err)
		}
	}
	if created["emp-bob"] {
		hr := generic.Actor{EmployeeID: "hr-demo", Role: generic.RoleHR}
		if _, err := h.Leave.Create(ctx, hr, timeoff.CreateInput{
			EmployeeID: "emp-bob",
			Kind:       timeoff.KindVacation,
			StartDate:  monday.AddDays(7),
			EndDate:    monday.AddDays(9),
			Note:       "Recorded by HR",
		}); err != nil {
			return fmt.Errorf("seed approved request: %w", err)
		}
	}
	return nil
}
