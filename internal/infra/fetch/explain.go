package fetch

import (
	"fmt"
	"math"
)

// Explanation is user-facing copy for a failed request.
type Explanation struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Explain turns any error into copy suitable for an error banner.
func Explain(err error) Explanation {
	fe := AsError(err)
	if fe == nil {
		return Explanation{Title: "An error occurred", Message: "Please try again later."}
	}

	switch fe.Kind {
	case KindRateLimit:
		if fe.RetryAfter > 0 {
			secs := int(math.Ceil(fe.RetryAfter.Seconds()))
			return Explanation{
				Title:   "Rate limit reached",
				Message: fmt.Sprintf("Please try again in about %d seconds.", secs),
			}
		}
		return Explanation{
			Title:   "Rate limit reached",
			Message: "Please wait a moment or reduce the number of data requests.",
		}
	case KindTimeout:
		return Explanation{Title: "Request timed out", Message: "The connection is slow. Please try again."}
	case KindNetwork:
		return Explanation{Title: "Network error", Message: "Please check your connection and try again."}
	case KindServer:
		return Explanation{Title: "Server error", Message: "Please try again in a moment."}
	case KindBadRequest:
		return Explanation{Title: "Invalid request", Message: "Please try a different action."}
	default:
		return Explanation{Title: "An error occurred", Message: "Please try again later."}
	}
}
