package workflow

import (
	"testing"

	"creditflow/status"
)

func TestCanTransition_SameColumnIsNoOp(t *testing.T) {
	snap := Snapshot{Current: status.InReview}
	denial := CanTransition(RoleAdvisor, snap, status.InReview)
	if denial == nil || !denial.NoOp {
		t.Fatalf("expected no-op denial, got %v", denial)
	}
}

func TestCanTransition_UnknownTargetDenied(t *testing.T) {
	snap := Snapshot{Current: status.New}
	for _, role := range []Role{RoleAdvisor, RoleCompanyAdmin} {
		denial := CanTransition(role, snap, status.Status("garbage"))
		if denial == nil || denial.NoOp {
			t.Errorf("role %s: expected hard denial for unknown target, got %v", role, denial)
		}
	}
}

func TestAdvisorTransitions(t *testing.T) {
	cases := []struct {
		name    string
		snap    Snapshot
		target  status.Status
		allowed bool
	}{
		{"new to in_review", Snapshot{Current: status.New}, status.InReview, true},
		{"in_review to approved", Snapshot{Current: status.InReview}, status.Approved, true},
		{"approved back to in_review", Snapshot{Current: status.Approved}, status.InReview, true},
		{"in_review to cancelled", Snapshot{Current: status.InReview}, status.Cancelled, true},
		{"from completed", Snapshot{Current: status.Completed}, status.New, false},
		{"from expired", Snapshot{Current: status.Expired}, status.New, false},
		{"from cancelled", Snapshot{Current: status.Cancelled}, status.InReview, false},
		{"from por_dispersar", Snapshot{Current: status.PorDispersar}, status.Approved, false},
		{
			"locked once fully approved",
			Snapshot{Current: status.Approved, ApprovedByAdvisor: true, ApprovedByCompany: true},
			status.InReview,
			false,
		},
		{
			"single approval does not lock",
			Snapshot{Current: status.Approved, ApprovedByAdvisor: true},
			status.InReview,
			true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			denial := CanTransition(RoleAdvisor, tc.snap, tc.target)
			if tc.allowed && denial != nil {
				t.Fatalf("expected allowed, got denial %q", denial.Reason)
			}
			if !tc.allowed && denial == nil {
				t.Fatalf("expected denial")
			}
		})
	}
}

func TestCompanyTransitions(t *testing.T) {
	cases := []struct {
		name    string
		snap    Snapshot
		target  status.Status
		allowed bool
	}{
		{"new to in_review", Snapshot{Current: status.New}, status.InReview, true},
		{"in_review back to new", Snapshot{Current: status.InReview}, status.New, true},
		{"in_review to approved", Snapshot{Current: status.InReview}, status.Approved, true},
		{"to por_dispersar denied", Snapshot{Current: status.Approved}, status.PorDispersar, false},
		{"to completed denied", Snapshot{Current: status.InReview}, status.Completed, false},
		{"to cancelled denied", Snapshot{Current: status.New}, status.Cancelled, false},
		{"to expired denied", Snapshot{Current: status.New}, status.Expired, false},
		{"to rejected denied", Snapshot{Current: status.InReview}, status.Rejected, false},
		{"from shared lane denied", Snapshot{Current: status.PorDispersar}, status.InReview, false},
		{"from completed denied", Snapshot{Current: status.Completed}, status.InReview, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			denial := CanTransition(RoleCompanyAdmin, tc.snap, tc.target)
			if tc.allowed && denial != nil {
				t.Fatalf("expected allowed, got denial %q", denial.Reason)
			}
			if !tc.allowed && denial == nil {
				t.Fatalf("expected denial")
			}
			if denial != nil && denial.NoOp {
				t.Fatalf("expected hard denial, got no-op")
			}
		})
	}
}
