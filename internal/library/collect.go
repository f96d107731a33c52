package library

import (
	"github.com/TheMichaelB/shelfkey/internal/events"
)

// collect applies fn to every item and keeps the successful results. A
// failing item is logged and dropped; it never aborts the walk.
func collect[T, R any](logger *events.Logger, items []T, name func(T) string, fn func(T) (R, error)) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		r, err := fn(item)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"item":  name(item),
				"error": err.Error(),
			}).Debug("Skipped")
			continue
		}
		out = append(out, r)
	}
	return out
}
