package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Income  TxType = "IN"
	Expense TxType = "OUT"
)

const (
	// FallbackCategoryName is the global category that absorbs transactions
	// whose category is missing or deleted.
	FallbackCategoryName = "Outros"

	MaxCategoryNameLen = 80
	MaxDescriptionLen  = 200
)

type (
	TxType string

	Date struct {
		time.Time
	}

	Category struct {
		ID        int64
		Name      string
		Owner     string // empty for global categories
		CreatedAt time.Time
	}

	Transaction struct {
		ID           int64
		Type         TxType
		Amount       Money
		Date         Date
		Description  string
		CategoryID   int64
		CategoryName string
		Owner        string
		CreatedAt    time.Time
	}

	// TransactionInput carries the fields of a new transaction.
	TransactionInput struct {
		Type        TxType
		Amount      Money
		Date        Date
		Description string
		Category    CategoryRef
	}

	// TransactionPatch is a partial update. Nil pointers leave the field as is;
	// Category distinguishes absent, explicit null and explicit id.
	TransactionPatch struct {
		Type        *TxType
		Amount      *Money
		Date        *Date
		Description *string
		Category    CategoryRef
	}

	// TransactionFilter narrows a transaction listing. All filters are conjunctive.
	TransactionFilter struct {
		Year       int // with Month, restricts to one calendar month
		Month      int
		Type       TxType
		CategoryID int64
		Search     string
		Ordering   []string
		Limit      int
		Offset     int
	}

	// CategoryListOptions narrows a category listing.
	CategoryListOptions struct {
		Search   string
		Ordering string
	}
)

// ParseTxType accepts the wire codes (IN/OUT) and the long names.
func ParseTxType(s string) (TxType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IN", "INCOME":
		return Income, nil
	case "OUT", "EXPENSE":
		return Expense, nil
	}
	return "", ErrInvalidType
}

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// Label returns the human readable name of the type.
func (t TxType) Label() string {
	switch t {
	case Income:
		return "Entrada"
	case Expense:
		return "Saída"
	}
	return string(t)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a calendar date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthRange returns the half-open [from, to) date bounds of a calendar month
// as YYYY-MM-DD strings.
func MonthRange(year, month int) (from, to string) {
	start := NewDate(year, month, 1)
	end := Date{Time: start.AddDate(0, 1, 0)}
	return start.String(), end.String()
}

// FormatPeriod renders a year and month as YYYY-MM.
func FormatPeriod(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ParsePeriod parses YYYY-MM. ok is false for malformed input.
func ParsePeriod(s string) (year, month int, ok bool) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, false
	}
	return t.Year(), int(t.Month()), true
}

// ValidateCategoryName checks a user supplied category name, including the
// reserved fallback name.
func ValidateCategoryName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if len([]rune(name)) > MaxCategoryNameLen {
		return &ValidationError{Field: "name", Err: ErrNameTooLong}
	}
	if IsReservedName(name) {
		return &ValidationError{Field: "name", Err: ErrReservedName}
	}
	return nil
}

func (in TransactionInput) Validate() error {
	if !in.Type.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if err := in.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	if err := in.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	if len([]rune(in.Description)) > MaxDescriptionLen {
		return &ValidationError{Field: "description", Err: ErrDescriptionTooLong}
	}
	return nil
}

func (p TransactionPatch) Validate() error {
	if p.Type != nil && !p.Type.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return &ValidationError{Field: "amount", Err: err}
		}
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return &ValidationError{Field: "date", Err: err}
		}
	}
	if p.Description != nil && len([]rune(*p.Description)) > MaxDescriptionLen {
		return &ValidationError{Field: "description", Err: ErrDescriptionTooLong}
	}
	return nil
}

// Apply copies the patched scalar fields onto t. The category is resolved by
// the caller because it needs the store.
func (p TransactionPatch) Apply(t *Transaction) {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
}

// HasMonth reports whether the filter restricts to a calendar month.
func (f TransactionFilter) HasMonth() bool {
	return f.Year > 0 && f.Month >= 1 && f.Month <= 12
}
