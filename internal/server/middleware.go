package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const callerHeader = "X-Caller-Address"

// CallerAddress extracts the claimed caller identity from the request. The
// services normalize and validate it; here it is only plumbed through.
func (s *Server) CallerAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := strings.TrimSpace(c.GetHeader(callerHeader))
		if caller != "" {
			c.Set("caller_address", strings.ToLower(caller))
		}
		c.Next()
	}
}

func (s *Server) caller(c *gin.Context) string {
	return c.GetString("caller_address")
}

// SubmitRateLimit throttles write traffic per caller. Disabled limiter means
// no throttling.
func (s *Server) SubmitRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.submitLimiter == nil {
			c.Next()
			return
		}

		caller := s.caller(c)
		if caller == "" {
			c.Next()
			return
		}

		allowed, res := s.submitLimiter.Allow(c.Request.Context(), caller)
		if !allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
