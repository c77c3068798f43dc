package user

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

type contextKey string

const UserIdKey contextKey = "userId"

var ErrNoUser = errors.New("no user in request context")

// CurrentId retrieves the requesting user's id from the context. Returns
// ErrNoUser when the request carried no identity. Authentication itself
// happens upstream; this service only propagates the id it was handed.
func CurrentId(ctx context.Context) (string, error) {
	id, ok := ctx.Value(UserIdKey).(string)
	if !ok || id == "" {
		log.Trace("user not found in context")
		return "", ErrNoUser
	}
	return id, nil
}

func WithId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIdKey, id)
}
