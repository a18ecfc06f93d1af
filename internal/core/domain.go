package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Expense TxType = "expense"
	Income  TxType = "income"
)

// DefaultCategoryColor is applied when a category is saved without a color.
const DefaultCategoryColor = "#4ECDC4"

const (
	maxDescriptionLen = 200
	maxVendorLen      = 100
	maxCategoryName   = 50
	maxIconLen        = 16
)

type (
	// TxType tags both transactions and categories.
	TxType string

	Transaction struct {
		ID          int64           `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Date        Date            `json:"date"`
		Type        TxType          `json:"type"`
		Description string          `json:"description,omitempty"`
		Vendor      string          `json:"vendor,omitempty"`
		CategoryID  *int64          `json:"category_id"`

		// Populated on reads when the transaction has a category.
		CategoryName  string `json:"category_name,omitempty"`
		CategoryIcon  string `json:"category_icon,omitempty"`
		CategoryColor string `json:"category_color,omitempty"`
	}

	Category struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Icon  string `json:"icon"`
		Color string `json:"color"`
		Type  TxType `json:"type"`
	}
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInvalidType          = errors.New("type must be expense or income")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidRange         = errors.New("start date must not be after end date")
	ErrEmptyName            = errors.New("name is required")
	ErrInvalidColor         = errors.New("color must be a #RRGGBB hex value")
	ErrCategoryTypeMismatch = errors.New("Category type does not match transaction type")
	ErrCategoryInUse        = errors.New("category in use")
	ErrPlanAlreadyStarted   = errors.New("Plan already started")
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// CategoryInUseError reports how many transactions still reference a category.
// Op is the rejected operation, "delete" when empty.
type CategoryInUseError struct {
	Count int
	Op    string
}

func (e *CategoryInUseError) Error() string {
	op := e.Op
	if op == "" {
		op = "delete"
	}
	return fmt.Sprintf("Cannot %s category: %d transaction(s) still use it", op, e.Count)
}

func (e *CategoryInUseError) Is(target error) bool {
	return target == ErrCategoryInUse
}

func (t TxType) Valid() bool {
	return t == Expense || t == Income
}

// ParseTxType accepts the wire names case-insensitively.
func ParseTxType(s string) (TxType, error) {
	t := TxType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (tx Transaction) Validate() error {
	if !tx.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !tx.Type.Valid() {
		return ErrInvalidType
	}
	if err := tx.Date.Validate(); err != nil {
		return err
	}
	if len(tx.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description too long (max %d characters)", ErrInvalidInput, maxDescriptionLen)
	}
	if len(tx.Vendor) > maxVendorLen {
		return fmt.Errorf("%w: vendor too long (max %d characters)", ErrInvalidInput, maxVendorLen)
	}
	return nil
}

// Normalize trims free text fields.
func (tx *Transaction) Normalize() {
	tx.Description = strings.TrimSpace(tx.Description)
	tx.Vendor = strings.TrimSpace(tx.Vendor)
}

// Signed returns the amount with the sign implied by the transaction type.
func (tx Transaction) Signed() decimal.Decimal {
	if tx.Type == Expense {
		return tx.Amount.Neg()
	}
	return tx.Amount
}

// Normalize trims text fields and fills in the default color.
func (c *Category) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Icon = strings.TrimSpace(c.Icon)
	c.Color = strings.TrimSpace(c.Color)
	if c.Color == "" {
		c.Color = DefaultCategoryColor
	}
}

func (c Category) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if len(c.Name) > maxCategoryName {
		return fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidInput, maxCategoryName)
	}
	if len(c.Icon) > maxIconLen {
		return fmt.Errorf("%w: icon too long (max %d bytes)", ErrInvalidInput, maxIconLen)
	}
	if !hexColor.MatchString(c.Color) {
		return ErrInvalidColor
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

// FirstOfMonth returns the first day of the month containing t.
func FirstOfMonth(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), 1)
}
