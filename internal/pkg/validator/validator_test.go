package validator

import "testing"

type betLeg struct {
	MatchType string `json:"matchType" validate:"match_type"`
}

type userRole struct {
	Role string `json:"targetRole" validate:"role"`
}

func TestMatchTypeValidation(t *testing.T) {
	for _, mt := range []string{"prematch", "live"} {
		if errs := Validate(betLeg{MatchType: mt}); errs != nil {
			t.Errorf("%q rejected: %v", mt, errs)
		}
	}
	errs := Validate(betLeg{MatchType: "halftime"})
	if errs == nil {
		t.Fatal("unknown match type accepted")
	}
	// Errors are keyed by the JSON tag name.
	if _, ok := errs["matchType"]; !ok {
		t.Fatalf("expected matchType field error, got %v", errs)
	}
}

func TestRoleValidation(t *testing.T) {
	for _, r := range []string{"player", "agent", "admin", "superadmin"} {
		if errs := Validate(userRole{Role: r}); errs != nil {
			t.Errorf("%q rejected: %v", r, errs)
		}
	}
	if errs := Validate(userRole{Role: "root"}); errs == nil {
		t.Fatal("unknown role accepted")
	}
}
