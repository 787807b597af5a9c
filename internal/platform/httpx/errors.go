package httpx

import (
	"errors"
	"log/slog"
	"net/http"
)

// Rule maps a sentinel error to an RFC7807 problem.
type Rule struct {
	Err    error
	Status int
	Title  string
}

// RespondError writes the problem of the first rule matching err. Unmatched
// errors are logged under msg and answered with a bare 500.
func RespondError(w http.ResponseWriter, logger *slog.Logger, msg string, err error, rules ...Rule) {
	for _, rule := range rules {
		if errors.Is(err, rule.Err) {
			Problem(w, rule.Status, rule.Title, err.Error())
			return
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(msg, slog.Any("error", err))
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
