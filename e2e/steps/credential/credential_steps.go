package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	POSTAsOperator(path string, body any) error
	GET(path string, headers map[string]string) error
	GetStatus() int
	GetResponseField(field string) (any, error)
	Holder() string
	SetAccessToken(token string)
	NewNonce() string
	CurrentNonce() string
}

// RegisterSteps registers holder-facing credential lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &credentialSteps{tc: tc}

	// Identity steps
	ctx.Step(`^a holder with an access token$`, steps.holderWithAccessToken)
	ctx.Step(`^the holder has no access token$`, steps.holderWithoutAccessToken)

	// Submission steps
	ctx.Step(`^the holder issues a credential with a deposit of (\d+)$`, steps.issueWithDeposit)
	ctx.Step(`^the holder submits an accrual of (\d+)$`, steps.submitAccrual)
	ctx.Step(`^the holder resubmits the same accrual of (\d+)$`, steps.resubmitAccrual)
	ctx.Step(`^the holder requests termination$`, steps.requestTermination)

	// Query steps
	ctx.Step(`^the holder checks their credential$`, steps.checkCredential)
	ctx.Step(`^the holder checks their history$`, steps.checkHistory)
	ctx.Step(`^the holder checks the last operation$`, steps.checkLastOperation)

	// Auto-termination runs as a follow-up operation behind the capping
	// accrual, so observing it needs a bounded poll.
	ctx.Step(`^the credential should be "([^"]*)" within (\d+) seconds$`, steps.credentialShouldBecomeWithin)
}

type credentialSteps struct {
	tc TestContext
}

func (s *credentialSteps) holderWithAccessToken(ctx context.Context) error {
	err := s.tc.POSTAsOperator("/admin/tokens", map[string]any{"holder": s.tc.Holder()})
	if err != nil {
		return err
	}
	if s.tc.GetStatus() != 200 {
		return fmt.Errorf("token mint returned %d, want 200", s.tc.GetStatus())
	}
	token, err := s.tc.GetResponseField("token")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(fmt.Sprintf("%v", token))
	return nil
}

func (s *credentialSteps) holderWithoutAccessToken(ctx context.Context) error {
	s.tc.SetAccessToken("")
	return nil
}

func (s *credentialSteps) issueWithDeposit(ctx context.Context, amount int) error {
	return s.tc.POST("/credentials/issue?wait=true", map[string]any{
		"nonce":  s.tc.NewNonce(),
		"amount": amount,
	})
}

func (s *credentialSteps) submitAccrual(ctx context.Context, amount int) error {
	return s.tc.POST("/credentials/accrue?wait=true", map[string]any{
		"nonce":  s.tc.NewNonce(),
		"amount": amount,
	})
}

func (s *credentialSteps) resubmitAccrual(ctx context.Context, amount int) error {
	nonce := s.tc.CurrentNonce()
	if nonce == "" {
		return fmt.Errorf("no prior accrual to resubmit")
	}
	return s.tc.POST("/credentials/accrue?wait=true", map[string]any{
		"nonce":  nonce,
		"amount": amount,
	})
}

func (s *credentialSteps) requestTermination(ctx context.Context) error {
	return s.tc.POST("/credentials/terminate?wait=true", map[string]any{
		"nonce": s.tc.NewNonce(),
	})
}

func (s *credentialSteps) checkCredential(ctx context.Context) error {
	return s.tc.GET("/credentials/"+s.tc.Holder(), nil)
}

func (s *credentialSteps) checkHistory(ctx context.Context) error {
	return s.tc.GET("/credentials/"+s.tc.Holder()+"/history", nil)
}

func (s *credentialSteps) checkLastOperation(ctx context.Context) error {
	nonce := s.tc.CurrentNonce()
	if nonce == "" {
		return fmt.Errorf("no prior operation to check")
	}
	return s.tc.GET("/operations/"+nonce, nil)
}

func (s *credentialSteps) credentialShouldBecomeWithin(ctx context.Context, want string, seconds int) error {
	deadline := time.Now().Add(time.Duration(seconds) * time.Second)
	var last any
	for {
		if err := s.tc.GET("/credentials/"+s.tc.Holder(), nil); err != nil {
			return err
		}
		value, err := s.tc.GetResponseField("status")
		if err == nil {
			last = value
			if fmt.Sprintf("%v", value) == want {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("credential status is %v, want %s after %ds", last, want, seconds)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
