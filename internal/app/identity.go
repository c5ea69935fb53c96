package app

import (
	"context"
	"strings"

	"contentcal/api/internal/content"
	"contentcal/api/internal/reconcile"
)

// Caller identifies who a request acts for. UserID comes from a verified
// bearer token; WebsiteID and SessionID come from request headers.
type Caller struct {
	UserID    string
	WebsiteID string
	SessionID string
}

// Tenant returns the caller's tenant when both user and website are known.
func (c Caller) Tenant() (content.Tenant, bool) {
	tenant := content.Tenant{UserID: strings.TrimSpace(c.UserID), WebsiteID: strings.TrimSpace(c.WebsiteID)}
	return tenant, tenant.Valid()
}

func (c Caller) Authenticated() bool {
	return strings.TrimSpace(c.UserID) != ""
}

// Target maps the caller onto a reconcile target. A tenant takes precedence
// over the anonymous session.
func (c Caller) Target() reconcile.Target {
	target := reconcile.Target{SessionID: strings.TrimSpace(c.SessionID)}
	if tenant, ok := c.Tenant(); ok {
		target.Tenant = &tenant
	}
	return target
}

type callerKey struct{}

func withCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func callerFrom(ctx context.Context) Caller {
	caller, _ := ctx.Value(callerKey{}).(Caller)
	return caller
}
