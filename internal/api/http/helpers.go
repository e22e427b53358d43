package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/assess"
	"github.com/AadarshCanCode/VOIS-cybercoach-sub000/internal/course"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeValid decodes a JSON body into dst and runs struct validation.
// Malformed input is a ValidationError: rejected with 400, never retried.
func decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// fail maps domain errors onto the response taxonomy: NotFound is terminal
// 404, everything else surfaces as 400.
func fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, course.ErrCourseNotFound),
		errors.Is(err, assess.ErrModuleNotFound),
		errors.Is(err, assess.ErrAttemptNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
