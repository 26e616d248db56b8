// Package ratelimit keeps the client under the backend's request quota.
//
// A SlidingWindow records the time of every allowed request and refuses new
// ones once the window is full:
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
