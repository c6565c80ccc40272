package e2e

import (
	"github.com/cucumber/godog"

	"tessera/e2e/steps/admin"
	"tessera/e2e/steps/common"
	"tessera/e2e/steps/credential"
)

// RegisterSteps registers all step definitions from the modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Generic request and assertion steps.
	common.RegisterSteps(ctx, tc)

	// Holder-facing credential lifecycle steps.
	credential.RegisterSteps(ctx, tc)

	// Operator surface steps.
	admin.RegisterSteps(ctx, tc)
}
