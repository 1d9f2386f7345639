package middleware

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/werawoot/Krua-Thai1-sub006/pkg/utils"
)

// RateLimit throttles a route to perMinute requests with a burst of one.
// A non-positive perMinute disables the limit.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	return limitWith(limiter)
}

func limitWith(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				w.Header().Set("Retry-After", strconv.Itoa(int(delay.Round(time.Second)/time.Second)+1))
				utils.RespondError(w, http.StatusTooManyRequests, "Too many optimization requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
