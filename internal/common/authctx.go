package common

import "context"

type ctxKey string

const (
	customerIDKey ctxKey = "auth/customer-id"
	roleKey       ctxKey = "auth/role"
)

// WithCustomerID stores the authenticated customer identifier on the provided context.
func WithCustomerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, customerIDKey, id)
}

// CustomerID extracts the authenticated customer identifier from the context if present.
func CustomerID(ctx context.Context) (string, bool) {
	v := ctx.Value(customerIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// WithRole stores the caller's role claim.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// Role returns the caller's role claim, or an empty string.
func Role(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}
