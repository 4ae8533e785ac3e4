package utils

import (
	"context"
)

type CustomContext struct {
	AppSource string
	Mailbox   string
}

type contextKey string

var customContextKey = contextKey("CUSTOM_CONTEXT")

func WithCustomContext(ctx context.Context, customContext *CustomContext) context.Context {
	return context.WithValue(ctx, customContextKey, customContext)
}

func GetContext(ctx context.Context) *CustomContext {
	customContext, ok := ctx.Value(customContextKey).(*CustomContext)
	if !ok {
		return new(CustomContext)
	}
	return customContext
}

func GetAppSourceFromContext(ctx context.Context) string {
	return GetContext(ctx).AppSource
}

func GetMailboxFromContext(ctx context.Context) string {
	return GetContext(ctx).Mailbox
}
