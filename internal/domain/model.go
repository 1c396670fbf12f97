package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Active reports whether an appointment in this status holds its slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no further transitions are allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type TestType string

const (
	TestPureTone     TestType = "pure_tone"
	TestSpeech       TestType = "speech"
	TestTympanometry TestType = "tympanometry"
)

func (t TestType) Valid() bool {
	switch t {
	case TestPureTone, TestSpeech, TestTympanometry:
		return true
	}
	return false
}

type Ear string

const (
	EarLeft  Ear = "left"
	EarRight Ear = "right"
)

func (e Ear) Valid() bool {
	return e == EarLeft || e == EarRight
}

type TransactionType string

const (
	TxRestock    TransactionType = "restock"
	TxSale       TransactionType = "sale"
	TxAdjustment TransactionType = "adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxRestock, TxSale, TxAdjustment:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderPlaced    OrderStatus = "placed"
	OrderInvoiced  OrderStatus = "invoiced"
	OrderCancelled OrderStatus = "cancelled"
)

type InvoiceStatus string

const (
	InvoiceUnpaid        InvoiceStatus = "unpaid"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
)

type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "cash"
	PaymentCard      PaymentMethod = "card"
	PaymentInsurance PaymentMethod = "insurance"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentInsurance:
		return true
	}
	return false
}

type User struct {
	ID       int64
	Username string
	Role     Role
}

type Patient struct {
	ID          int64
	UserID      *int64
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Phone       string
	Email       string
}

func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

type Audiologist struct {
	ID             int64
	UserID         int64
	FirstName      string
	LastName       string
	Specialization string
}

func (a Audiologist) FullName() string {
	return a.FirstName + " " + a.LastName
}

type Schedule struct {
	ID            int64
	AudiologistID int64
	DayOfWeek     time.Weekday
}

// TimeSlot is a recurring weekly interval on a schedule. IsAvailable is a
// cache rebuilt by reconciliation; booking decisions never read it.
type TimeSlot struct {
	ID          int64
	ScheduleID  int64
	StartTime   TimeOfDay
	EndTime     TimeOfDay
	IsAvailable bool
}

func (s TimeSlot) Duration() time.Duration {
	return time.Duration(s.EndTime-s.StartTime) * time.Minute
}

func (s TimeSlot) Label() string {
	return s.StartTime.String() + "-" + s.EndTime.String()
}

type Appointment struct {
	ID               int64
	PatientID        int64
	AudiologistID    int64
	CreatedBy        *int64
	Date             time.Time
	TimeSlotID       int64
	PurposeOfVisit   string
	Status           AppointmentStatus
	Fee              decimal.Decimal
	FollowUpRequired bool
	FollowUpDate     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type MedicalRecord struct {
	ID             int64
	PatientID      int64
	AppointmentID  int64
	CreatedBy      int64
	ChiefComplaint string
	Diagnosis      string
	TreatmentPlan  string
	RecordDate     time.Time
}

type HearingTest struct {
	ID        int64
	RecordID  int64
	TestType  TestType
	TestDate  time.Time
	TestNotes string
}

type AudiogramData struct {
	ID        int64
	TestID    int64
	Ear       Ear
	Frequency int
	Threshold int
}

type Prescription struct {
	ID             int64
	AppointmentID  int64
	ProductID      *int64
	PrescribedBy   int64
	PrescribedDate time.Time
	Notes          string
}

type Product struct {
	ID              int64
	Manufacturer    string
	Model           string
	Features        string
	Price           decimal.Decimal
	QuantityInStock int
}

func (p Product) Label() string {
	return p.Manufacturer + " " + p.Model
}

// InventoryTransaction is an append-only ledger entry. Quantity carries the
// signed effect on stock.
type InventoryTransaction struct {
	ID              int64
	ProductID       int64
	Type            TransactionType
	Quantity        int
	Reason          string
	TransactionDate time.Time
	ProcessedBy     int64
}

type Order struct {
	ID        int64
	PatientID int64
	OrderDate time.Time
	Status    OrderStatus
	CreatedBy int64
}

type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Invoice struct {
	ID            int64
	PatientID     int64
	OrderID       *int64
	AppointmentID *int64
	TotalAmount   decimal.Decimal
	IssuedAt      time.Time
	Status        InvoiceStatus
}

type Payment struct {
	ID         int64
	InvoiceID  int64
	Amount     decimal.Decimal
	Method     PaymentMethod
	PaidAt     time.Time
	ReceivedBy int64
}
