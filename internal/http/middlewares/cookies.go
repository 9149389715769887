package middlewares

import (
	"net/http"
	"time"
)

const httpSameSiteLax = http.SameSiteLaxMode

func maxAge(exp time.Time) int {
	secs := int(time.Until(exp).Seconds())
	if secs < 1 {
		return -1
	}
	return secs
}
