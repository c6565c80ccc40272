package admin

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GETAsOperator(path string) error
	GET(path string, headers map[string]string) error
	GetStatus() int
	GetResponseField(field string) (any, error)
	Holder() string
}

// RegisterSteps registers operator surface step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &adminSteps{tc: tc}

	ctx.Step(`^the operator lists operations with status "([^"]*)"$`, steps.listOperationsWithStatus)
	ctx.Step(`^the operator lists all operations$`, steps.listAllOperations)
	ctx.Step(`^the operator verifies the holder's holdings$`, steps.verifyHoldings)
	ctx.Step(`^the operator surface is probed without a token$`, steps.probeWithoutToken)

	ctx.Step(`^the listing should contain at least (\d+) operations?$`, steps.listingShouldContainAtLeast)
}

type adminSteps struct {
	tc TestContext
}

func (s *adminSteps) listOperationsWithStatus(ctx context.Context, status string) error {
	return s.tc.GETAsOperator("/admin/operations?status=" + status)
}

func (s *adminSteps) listAllOperations(ctx context.Context) error {
	return s.tc.GETAsOperator("/admin/operations")
}

func (s *adminSteps) verifyHoldings(ctx context.Context) error {
	return s.tc.GETAsOperator("/admin/holdings/" + s.tc.Holder())
}

func (s *adminSteps) probeWithoutToken(ctx context.Context) error {
	return s.tc.GET("/admin/operations", nil)
}

func (s *adminSteps) listingShouldContainAtLeast(ctx context.Context, count int) error {
	value, err := s.tc.GetResponseField("operations")
	if err != nil {
		return err
	}
	list, ok := value.([]any)
	if !ok {
		return fmt.Errorf("operations field is not a list: %T", value)
	}
	if len(list) < count {
		return fmt.Errorf("listing has %d operations, want at least %d", len(list), count)
	}
	return nil
}
