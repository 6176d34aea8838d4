package rate

import (
	"context"
	"time"
)

// Limiter gates login attempts per key (client IP). Implementations report
// whether the attempt is allowed and how long to wait when it is not.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error)
}
