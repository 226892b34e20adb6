package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid JSON body")

// decodeJSON reads a single JSON object from the request body. An empty body
// decodes to the zero value so that missing fields are reported by name.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, core.ErrInvalidAmount) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// missingFields names the required keys that are absent from a request.
type missingFields []string

func (m *missingFields) check(name string, present bool) {
	if !present {
		*m = append(*m, name)
	}
}

func (m missingFields) message() string {
	return "Missing fields: " + strings.Join(m, ", ")
}

// requestUser returns the authenticated user, enforcing that a user_id given
// by the client matches the token.
func requestUser(w http.ResponseWriter, r *http.Request, claimed *int64) (int64, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing Authorization header")
		return 0, false
	}
	if claimed != nil && *claimed != userID {
		writeError(w, http.StatusForbidden, "User mismatch")
		return 0, false
	}
	return userID, true
}

// monthParam parses the month query parameter. It answers 400 itself when the
// value is malformed or required but missing.
func monthParam(w http.ResponseWriter, r *http.Request, required bool, fallback core.Month) (core.Month, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("month"))
	if raw == "" {
		if required {
			writeError(w, http.StatusBadRequest, "Month parameter required")
			return core.Month{}, false
		}
		return fallback, true
	}
	m, err := core.ParseMonth(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format, expected YYYY-MM")
		return core.Month{}, false
	}
	return m, true
}

// jsonAmount accepts amounts as JSON numbers or strings; strings may use a
// decimal comma. Range checks are left to the services.
type jsonAmount struct {
	decimal.Decimal
}

func (a *jsonAmount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return core.ErrInvalidAmount
	}
	a.Decimal = d
	return nil
}
