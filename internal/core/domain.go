package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

type (
	// EventType is the canonical code of an event direction.
	EventType string

	// Category is the canonical code of an event category.
	Category string

	// PaymentType is the canonical code of a payment method.
	PaymentType string

	// Kind is the resolved direction of an event type, including
	// localized aliases.
	Kind int

	// Event is an income or expense record as returned by the backend.
	Event struct {
		ID            int64           `json:"id,omitempty"`
		Title         string          `json:"title"`
		Type          EventType       `json:"type"`
		Amount        decimal.Decimal `json:"amount"`
		Date          Date            `json:"date"`
		Category      Category        `json:"category"`
		Description   string          `json:"description,omitempty"`
		PaymentType   PaymentType     `json:"paymentType,omitempty"`
		NIP           json.Number     `json:"nip,omitempty"`
		InvoiceNumber json.Number     `json:"invoiceNumber,omitempty"`
		ReceiptImage  string          `json:"receiptImage,omitempty"`
	}

	// NewEvent is the payload of an add-event request. The receipt image
	// travels as opaque base64.
	NewEvent struct {
		Title         string          `json:"title"`
		Type          EventType       `json:"type"`
		Amount        decimal.Decimal `json:"amount"`
		Date          Date            `json:"date"`
		Category      Category        `json:"category"`
		Description   string          `json:"description,omitempty"`
		PaymentType   PaymentType     `json:"paymentType,omitempty"`
		NIP           json.Number     `json:"nip,omitempty"`
		InvoiceNumber json.Number     `json:"invoiceNumber,omitempty"`
		Base64String  string          `json:"base64String,omitempty"`
	}
)

const (
	Income  EventType = "INCOME"
	Expense EventType = "EXPENSE"

	// Localized labels of the event types. Lists that were already mapped
	// for display carry these instead of the codes.
	IncomeLabel  EventType = "Wpływ"
	ExpenseLabel EventType = "Wydatek"
)

const (
	KindUnknown Kind = iota
	KindIncome
	KindExpense
)

const (
	Electronics              Category = "ELECTRONICS"
	FinanceAndPayments       Category = "FINANCE_AND_PAYMENTS"
	InvestmentsAndSavings    Category = "INVESTMENTS_AND_SAVINGS"
	CultureAndEducation      Category = "CULTURE_AND_EDUCATION"
	FashionAndAccessories    Category = "FASHION_AND_ACCESSORIES"
	RealEstate               Category = "REAL_ESTATE"
	HomeBills                Category = "HOME_BILLS"
	LoansAndCredits          Category = "LOANS_AND_CREDITS"
	GiftsAndFamily           Category = "GIFTS_AND_FAMILY"
	TransfersAndTransactions Category = "TRANSFERS_AND_TRANSACTIONS"
	EntertainmentAndLeisure  Category = "ENTERTAINMENT_AND_LEISURE"
	Transport                Category = "TRANSPORT"
	ServicesAndRepairs       Category = "SERVICES_AND_REPAIRS"
	SalariesAndIncome        Category = "SALARIES_AND_INCOME"
	Equipment                Category = "EQUIPMENT"
	DailyShopping            Category = "DAILY_SHOPPING"
	HealthAndBeauty          Category = "HEALTH_AND_BEAUTY"
	Pets                     Category = "PETS"
	Others                   Category = "OTHERS"
)

const (
	Card  PaymentType = "CARD"
	Cash  PaymentType = "CASH"
	Blik  PaymentType = "BLIK"
	Other PaymentType = "OTHER"
)

const maxTitleLength = 200

var categories = []Category{
	Electronics, FinanceAndPayments, InvestmentsAndSavings, CultureAndEducation,
	FashionAndAccessories, RealEstate, HomeBills, LoansAndCredits, GiftsAndFamily,
	TransfersAndTransactions, EntertainmentAndLeisure, Transport, ServicesAndRepairs,
	SalariesAndIncome, Equipment, DailyShopping, HealthAndBeauty, Pets, Others,
}

var paymentTypes = []PaymentType{Card, Cash, Blik, Other}

var (
	ErrEmptyTitle         = errors.New("empty title")
	ErrTitleTooLong       = errors.New("title too long")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrUnknownType        = errors.New("unknown event type")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrUnknownPaymentType = errors.New("unknown payment type")
	ErrInvalidNIP         = errors.New("invalid NIP")
)

// Kind resolves the direction of t. Unrecognized values are KindUnknown
// and contribute to no total.
func (t EventType) Kind() Kind {
	switch t {
	case Income, IncomeLabel:
		return KindIncome
	case Expense, ExpenseLabel:
		return KindExpense
	default:
		return KindUnknown
	}
}

func (t EventType) Valid() bool {
	return t == Income || t == Expense
}

// Categories returns every category code in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// PaymentTypes returns every payment type code in display order.
func PaymentTypes() []PaymentType {
	out := make([]PaymentType, len(paymentTypes))
	copy(out, paymentTypes)
	return out
}

func (p PaymentType) Valid() bool {
	for _, known := range paymentTypes {
		if p == known {
			return true
		}
	}
	return false
}

// Validate checks the add-event payload before it is sent upstream.
func (e NewEvent) Validate() error {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return fmt.Errorf("%w (max %d characters)", ErrTitleTooLong, maxTitleLength)
	}
	if e.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, e.Category)
	}
	if e.PaymentType != "" && !e.PaymentType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPaymentType, e.PaymentType)
	}
	if e.NIP != "" {
		if _, ok := NormalizeNIP(string(e.NIP)); !ok {
			return ErrInvalidNIP
		}
	}
	return nil
}

// NormalizeNIP strips separators from a Polish tax id and reports whether
// ten digits remain.
func NormalizeNIP(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == ' ':
		default:
			return "", false
		}
	}
	if b.Len() != 10 {
		return "", false
	}
	return b.String(), true
}
