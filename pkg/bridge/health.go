package bridge

import (
	"context"
	"time"

	"github.com/MrWong99/aibridge/pkg/health"
	"github.com/MrWong99/aibridge/pkg/vectorstore"
)

// pingTimeout bounds the readiness completion. Remote models can be slow to
// answer even a one-word prompt.
const pingTimeout = 15 * time.Second

// HealthChecker returns a readiness check named "ai" that sends a one-message
// "ping" completion through svc using sel. Any error marks the service
// unready.
func HealthChecker(svc *Service, sel Selection) health.Checker {
	return health.Checker{
		Name:    "ai",
		Timeout: pingTimeout,
		Check: func(ctx context.Context) error {
			_, err := svc.Chat.Complete(ctx, sel, "ping")
			return err
		},
	}
}

// StoreChecker returns a readiness check named "vectorstore" for stores
// that implement [vectorstore.Pinger], and false for the rest.
func StoreChecker(store vectorstore.Store) (health.Checker, bool) {
	p, ok := store.(vectorstore.Pinger)
	if !ok {
		return health.Checker{}, false
	}
	return health.Checker{Name: "vectorstore", Check: p.Ping}, true
}
