// Package http serves the ledger as a JSON API.
//
// This file implements request decoding: JSON bodies into domain inputs with
// per-field errors, and query strings into filters.

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

	"caixinha/internal/core"
	"caixinha/internal/services"
)

const maxBodyBytes = 1 << 20

const (
	msgRequired    = "This field is required."
	msgNotNull     = "This field may not be null."
	msgNotString   = "Not a valid string."
	msgMonthFormat = "Use the YYYY-MM format."
)

// fieldErrors maps an input field to its messages, the body of a 400.
type fieldErrors map[string][]string

func (fe fieldErrors) add(field string, err error) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		err = ve.Err
	}
	fe[field] = append(fe[field], err.Error())
}

func (fe fieldErrors) addMsg(field, msg string) {
	fe[field] = append(fe[field], msg)
}

var errMalformedBody = errors.New("malformed JSON body")

// decodeObject reads a JSON object body into its raw members.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	var raw map[string]json.RawMessage
	dec := json.NewDecoder(body)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected an object", errMalformedBody)
	}
	return raw, nil
}

func isNull(m json.RawMessage) bool {
	return strings.TrimSpace(string(m)) == "null"
}

func decodeString(m json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(m, &s); err != nil {
		return "", false
	}
	return s, true
}

// parseCategoryName extracts "name" from a category body.
func parseCategoryName(raw map[string]json.RawMessage, required bool) (string, bool, fieldErrors) {
	errs := fieldErrors{}
	m, ok := raw["name"]
	switch {
	case !ok:
		if required {
			errs.addMsg("name", msgRequired)
		}
		return "", false, errs
	case isNull(m):
		errs.addMsg("name", msgNotNull)
		return "", false, errs
	}
	name, ok := decodeString(m)
	if !ok {
		errs.addMsg("name", msgNotString)
		return "", false, errs
	}
	return name, true, errs
}

// parseTransactionFields decodes the writable transaction fields into a
// patch. With requireAll, type, amount and date must be present (create and
// full replace); description and category stay optional either way.
func parseTransactionFields(raw map[string]json.RawMessage, requireAll bool) (core.TransactionPatch, fieldErrors) {
	var p core.TransactionPatch
	errs := fieldErrors{}

	required := func(field string) (json.RawMessage, bool) {
		m, ok := raw[field]
		if !ok {
			if requireAll {
				errs.addMsg(field, msgRequired)
			}
			return nil, false
		}
		if isNull(m) {
			errs.addMsg(field, msgNotNull)
			return nil, false
		}
		return m, true
	}

	if m, ok := required("type"); ok {
		s, isStr := decodeString(m)
		t, err := core.ParseTxType(s)
		if !isStr || err != nil {
			errs.add("type", core.ErrInvalidType)
		} else {
			p.Type = &t
		}
	}
	if m, ok := required("amount"); ok {
		var amt core.Money
		if err := json.Unmarshal(m, &amt); err != nil {
			errs.add("amount", unwrapJSONError(err, core.ErrInvalidAmount))
		} else {
			p.Amount = &amt
		}
	}
	if m, ok := required("date"); ok {
		var d core.Date
		if err := json.Unmarshal(m, &d); err != nil {
			errs.add("date", core.ErrInvalidDate)
		} else {
			p.Date = &d
		}
	}
	if m, ok := raw["description"]; ok {
		if isNull(m) {
			errs.addMsg("description", msgNotNull)
		} else if s, isStr := decodeString(m); !isStr {
			errs.addMsg("description", msgNotString)
		} else {
			p.Description = &s
		}
	}
	if m, ok := raw["category"]; ok {
		if err := json.Unmarshal(m, &p.Category); err != nil {
			errs.add("category", core.ErrUnknownCategory)
		}
	}

	if len(errs) == 0 {
		if err := p.Validate(); err != nil {
			var ve *core.ValidationError
			if errors.As(err, &ve) {
				errs.add(ve.Field, ve.Err)
			}
		}
	}
	return p, errs
}

// unwrapJSONError keeps domain errors returned by UnmarshalJSON and replaces
// decoder errors (wrong JSON kind) with fallback.
func unwrapJSONError(err, fallback error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	if errors.As(err, &typeErr) || errors.As(err, &syntaxErr) {
		return fallback
	}
	return err
}

// inputFromPatch turns a fully populated patch into a create input.
func inputFromPatch(p core.TransactionPatch) core.TransactionInput {
	in := core.TransactionInput{Category: p.Category}
	if p.Type != nil {
		in.Type = *p.Type
	}
	if p.Amount != nil {
		in.Amount = *p.Amount
	}
	if p.Date != nil {
		in.Date = *p.Date
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	return in
}

// parseID reads the {id} path segment. Non-numeric ids are reported as absent.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseOrdering(q url.Values) []string {
	v := strings.TrimSpace(q.Get("ordering"))
	if v == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(v, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func parseCategoryListOptions(q url.Values) core.CategoryListOptions {
	opts := core.CategoryListOptions{Search: strings.TrimSpace(q.Get("search"))}
	if ordering := parseOrdering(q); len(ordering) > 0 {
		opts.Ordering = ordering[0]
	}
	return opts
}

// parseTransactionFilter reads month, type, category, search, ordering and
// paging parameters. Unrecognised type or category values are ignored; a
// malformed month is an error. paged reports whether limit or offset was sent.
func parseTransactionFilter(q url.Values) (f core.TransactionFilter, paged bool, errs fieldErrors) {
	errs = fieldErrors{}

	if v := strings.TrimSpace(q.Get("month")); v != "" {
		if y, m, ok := core.ParsePeriod(v); ok {
			f.Year, f.Month = y, m
		} else {
			errs.addMsg("month", msgMonthFormat)
		}
	}
	if v := strings.TrimSpace(q.Get("type")); v == string(core.Income) || v == string(core.Expense) {
		f.Type = core.TxType(v)
	}
	if v := strings.TrimSpace(q.Get("category")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			f.CategoryID = id
		}
	}
	f.Search = strings.TrimSpace(q.Get("search"))
	f.Ordering = parseOrdering(q)

	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := strings.TrimSpace(q.Get(name))
		if v == "" {
			continue
		}
		paged = true
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs.addMsg(name, "A non-negative integer is required.")
			continue
		}
		*dst = n
	}
	return f, paged, errs
}

// parseRecentLimit defaults to DefaultRecentLimit when limit is absent or
// not a number; the ledger clamps the rest.
func parseRecentLimit(q url.Values) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Get("limit")))
	if err != nil {
		return services.DefaultRecentLimit
	}
	return n
}

// parseSummaryMonth reads month=YYYY-MM, falling back to now's month when
// missing or malformed.
func parseSummaryMonth(q url.Values, now time.Time) (year, month int) {
	if y, m, ok := core.ParsePeriod(q.Get("month")); ok {
		return y, m
	}
	return now.Year(), int(now.Month())
}
