package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	Expense  TransactionType = "Expense"
	Income   TransactionType = "Income"
	Transfer TransactionType = "Transfer"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000

	// MaxAmount bounds the magnitude of a transaction amount in minor units.
	MaxAmount = 1_000_000_000_000_000
)

type (
	// TransactionType is a display attribute. It is derived on every read and
	// only consulted on writes to normalize the amount sign.
	TransactionType string

	Account struct {
		ID          int64  `json:"id"`
		Name        string `json:"name" validate:"required,max=100"`
		Description string `json:"description,omitempty" validate:"max=500"`
	}

	Tag struct {
		ID   int64  `json:"id"`
		Name string `json:"name" validate:"required,max=50"`
	}

	// Transaction amounts are in minor units (cents).
	Transaction struct {
		ID          int64           `json:"id"`
		Date        time.Time       `json:"date" validate:"required"`
		Amount      int64           `json:"amount" validate:"min=-1000000000000000,max=1000000000000000"`
		Type        TransactionType `json:"type,omitempty" validate:"omitempty,oneof=Expense Income Transfer"`
		AccountID   *int64          `json:"accountId,omitempty" validate:"required"`
		ToAccountID *int64          `json:"toAccountId,omitempty"`
		Description string          `json:"description" validate:"max=200"`
		TagIDs      []int64         `json:"tagIds" validate:"dive,gt=0"`
	}

	// TransactionListItem is a list row with account names resolved.
	TransactionListItem struct {
		Transaction
		AccountName   string `json:"accountName"`
		ToAccountName string `json:"toAccountName,omitempty"`
	}

	// TransactionFilter narrows a transaction list. From is inclusive, To is
	// exclusive. AccountID matches either side of a transfer.
	TransactionFilter struct {
		From      *time.Time `json:"from,omitempty"`
		To        *time.Time `json:"to,omitempty"`
		AccountID *int64     `json:"accountId,omitempty" validate:"omitempty,gt=0"`
		TagID     *int64     `json:"tagId,omitempty" validate:"omitempty,gt=0"`
		Search    string     `json:"search,omitempty" validate:"max=100"`
		Limit     int        `json:"limit" validate:"min=0,max=1000"`
		Offset    int        `json:"offset" validate:"min=0"`
	}
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")

	ErrSameAccountTransfer = errors.New("transfer source and destination must differ")
	ErrInvalidDateRange    = errors.New("'from' must be before 'to'")
	ErrEmptyBatch          = errors.New("batch must contain at least one transaction")
)

// IsValid reports whether t is one of the known transaction types.
func (t TransactionType) IsValid() bool {
	switch t {
	case Expense, Income, Transfer:
		return true
	default:
		return false
	}
}

func (a Account) Validate() error {
	a.Name = strings.TrimSpace(a.Name)
	return validateStruct(a)
}

func (t Tag) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	return validateStruct(t)
}

func (t Transaction) Validate() error {
	if err := validateStruct(t); err != nil {
		return err
	}
	if t.ToAccountID != nil && t.AccountID != nil && *t.ToAccountID == *t.AccountID {
		return newValidationError(FieldError{
			Field:   "toAccountId",
			Message: ErrSameAccountTransfer.Error(),
			Type:    "nefield",
		})
	}
	return nil
}

// ValidateTransactions validates a batch. Field names are prefixed with the
// item index so clients can point at the offending row.
func ValidateTransactions(txs []Transaction) error {
	if len(txs) == 0 {
		return newValidationError(FieldError{Field: "transactions", Message: ErrEmptyBatch.Error(), Type: "min"})
	}
	var details []FieldError
	for i, tx := range txs {
		err := tx.Validate()
		if err == nil {
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		for _, d := range verr.Details {
			d.Field = "[" + strconv.Itoa(i) + "]." + d.Field
			details = append(details, d)
		}
	}
	if len(details) > 0 {
		return newValidationError(details...)
	}
	return nil
}

// Normalize applies the default limit. It does not validate.
func (f *TransactionFilter) Normalize() {
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	f.Search = strings.TrimSpace(f.Search)
}

func (f TransactionFilter) Validate() error {
	if err := validateStruct(f); err != nil {
		return err
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return newValidationError(FieldError{Field: "from", Message: ErrInvalidDateRange.Error(), Type: "ltfield"})
	}
	return nil
}

// CacheKey renders the filter as a stable string for list caching.
func (f TransactionFilter) CacheKey() string {
	var b strings.Builder
	if f.From != nil {
		b.WriteString("from=" + strconv.FormatInt(f.From.UnixMilli(), 10) + ";")
	}
	if f.To != nil {
		b.WriteString("to=" + strconv.FormatInt(f.To.UnixMilli(), 10) + ";")
	}
	if f.AccountID != nil {
		b.WriteString("account=" + strconv.FormatInt(*f.AccountID, 10) + ";")
	}
	if f.TagID != nil {
		b.WriteString("tag=" + strconv.FormatInt(*f.TagID, 10) + ";")
	}
	if f.Search != "" {
		b.WriteString("q=" + strconv.Quote(f.Search) + ";")
	}
	b.WriteString("limit=" + strconv.Itoa(f.Limit) + ";offset=" + strconv.Itoa(f.Offset))
	return b.String()
}
