// Package actors drives the credit workflow the way concurrent users do:
// advisors and company admins hammering the same applications with status
// moves, approvals, rejections and restores. Denials are expected under
// contention and swallowed; anything else is a real failure.
package actors

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"creditflow/application"
	"creditflow/approval"
	"creditflow/rejection"
	"creditflow/status"
	"creditflow/workflow"
)

// Services bundles the real workflow services the actors act through.
type Services struct {
	Statuses   *application.StatusService
	Approvals  *approval.Engine
	Rejections *rejection.Manager
}

func swallowDenial(err error) error {
	if err == nil {
		return nil
	}
	var denial *workflow.Denial
	if errors.As(err, &denial) {
		return nil
	}
	if errors.Is(err, application.ErrNotFound) {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Advisor randomly works applications through the advisor's side of the
// workflow.
func Advisor(ctx context.Context, svc Services, ids []string, stop <-chan struct{}) error {
	targets := []status.Status{status.New, status.InReview, status.Approved, status.Cancelled}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}

		id := ids[rand.Intn(len(ids))]
		var err error
		switch rand.Intn(5) {
		case 0, 1:
			_, err = svc.Statuses.ChangeStatus(ctx, application.ChangeStatusRequest{
				ID:     id,
				Target: targets[rand.Intn(len(targets))],
				Role:   workflow.RoleAdvisor,
			})
		case 2:
			_, err = svc.Approvals.Approve(ctx, approval.ApproveRequest{ID: id, Role: workflow.RoleAdvisor})
		case 3:
			_, err = svc.Rejections.Reject(ctx, rejection.RejectRequest{
				ID: id, Role: workflow.RoleAdvisor, Reason: "Rechazo bajo carga",
			})
		default:
			_, err = svc.Rejections.Restore(ctx, id, "", application.ScopeFilter{})
		}
		if err := swallowDenial(err); err != nil {
			return err
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// CompanyAdmin randomly works applications through the company's virtual
// lanes and approval actions.
func CompanyAdmin(ctx context.Context, svc Services, ids []string, stop <-chan struct{}) error {
	lanes := []status.Status{status.New, status.InReview, status.Approved}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}

		id := ids[rand.Intn(len(ids))]
		var err error
		switch rand.Intn(5) {
		case 0, 1:
			_, err = svc.Statuses.ChangeStatus(ctx, application.ChangeStatusRequest{
				ID:     id,
				Target: lanes[rand.Intn(len(lanes))],
				Role:   workflow.RoleCompanyAdmin,
			})
		case 2, 3:
			_, err = svc.Approvals.Approve(ctx, approval.ApproveRequest{ID: id, Role: workflow.RoleCompanyAdmin})
		default:
			_, err = svc.Approvals.Revoke(ctx, id, "", application.ScopeFilter{})
		}
		if err := swallowDenial(err); err != nil {
			return err
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Disperser completes whatever reaches por_dispersar.
func Disperser(ctx context.Context, svc Services, ids []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}

		id := ids[rand.Intn(len(ids))]
		_, err := svc.Statuses.MarkAsDispersed(ctx, id, "", application.ScopeFilter{})
		if err := swallowDenial(err); err != nil {
			return err
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}
