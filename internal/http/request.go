package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sfinapp/internal/core"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

func parseID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidField("id", fmt.Sprintf("'%s' is not a valid id", raw), "numeric")
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %v", core.ErrValidation, errEmptyBody)
		}
		return fmt.Errorf("%w: malformed JSON body: %v", core.ErrValidation, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON value", core.ErrValidation)
	}
	return nil
}

// parseFilter reads the list query: from, to, accountId, tagId, search,
// limit and offset. Dates accept RFC 3339 or YYYY-MM-DD. Every malformed
// parameter is reported.
func parseFilter(q url.Values) (core.TransactionFilter, error) {
	var (
		f       core.TransactionFilter
		details []core.FieldError
	)
	bad := func(field, msg, typ string) {
		details = append(details, core.FieldError{Field: field, Message: msg, Type: typ})
	}

	if v := strings.TrimSpace(q.Get("from")); v != "" {
		if t, err := parseDate(v); err != nil {
			bad("from", "Invalid date", "datetime")
		} else {
			f.From = &t
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		if t, err := parseDate(v); err != nil {
			bad("to", "Invalid date", "datetime")
		} else {
			f.To = &t
		}
	}
	if v := strings.TrimSpace(q.Get("accountId")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err != nil {
			bad("accountId", "Must be an integer", "numeric")
		} else {
			f.AccountID = &id
		}
	}
	if v := strings.TrimSpace(q.Get("tagId")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err != nil {
			bad("tagId", "Must be an integer", "numeric")
		} else {
			f.TagID = &id
		}
	}
	f.Search = q.Get("search")
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err != nil {
			bad("limit", "Must be an integer", "numeric")
		} else {
			f.Limit = n
		}
	}
	if v := strings.TrimSpace(q.Get("offset")); v != "" {
		if n, err := strconv.Atoi(v); err != nil {
			bad("offset", "Must be an integer", "numeric")
		} else {
			f.Offset = n
		}
	}

	if len(details) > 0 {
		return core.TransactionFilter{}, &core.ValidationError{Details: details}
	}
	return f, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, v)
}

func invalidField(field, msg, typ string) error {
	return &core.ValidationError{Details: []core.FieldError{{Field: field, Message: msg, Type: typ}}}
}
