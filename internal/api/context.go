package api

import (
	"context"

	"github.com/org/jitaccess/pkg/models"
)

type contextKey string

const (
	ctxKeySubject   contextKey = "subject"
	ctxKeyRequestID contextKey = "request_id"
	ctxKeyAuditUser contextKey = "audit_user"
)

func withSubject(ctx context.Context, s models.Subject) context.Context {
	return context.WithValue(ctx, ctxKeySubject, s)
}

func subjectFromCtx(ctx context.Context) (models.Subject, bool) {
	s, ok := ctx.Value(ctxKeySubject).(models.Subject)
	return s, ok
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func requestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
