package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/query"
)

const dateLayout = time.DateOnly

type CreateAppointmentRequest struct {
	PatientID     int64            `json:"patient_id"`
	AudiologistID int64            `json:"audiologist_id"`
	Date          string           `json:"date"`
	TimeSlotID    int64            `json:"time_slot_id"`
	Purpose       string           `json:"purpose_of_visit"`
	Status        string           `json:"status,omitempty"`
	Fee           *decimal.Decimal `json:"fee,omitempty"`
}

type RecordContentRequest struct {
	ChiefComplaint string `json:"chief_complaint"`
	Diagnosis      string `json:"diagnosis"`
	TreatmentPlan  string `json:"treatment_plan"`
}

type DataPointRequest struct {
	Ear       string `json:"ear"`
	Frequency int    `json:"frequency"`
	Threshold int    `json:"threshold"`
}

type HearingTestRequest struct {
	PatientID     int64                 `json:"patient_id"`
	AudiologistID int64                 `json:"audiologist_id"`
	TestType      string                `json:"test_type"`
	Notes         string                `json:"test_notes"`
	Record        *RecordContentRequest `json:"record,omitempty"`
	DataPoints    []DataPointRequest    `json:"audiogram_data"`
}

type PrescribeRequest struct {
	ProductID *int64 `json:"product_id,omitempty"`
	Notes     string `json:"notes"`
}

type CompleteAppointmentRequest struct {
	Prescription *PrescribeRequest `json:"prescription,omitempty"`
	FollowUpDate string            `json:"follow_up_date,omitempty"`
}

type TestNotesRequest struct {
	Notes string `json:"test_notes"`
}

type ScheduleRequest struct {
	AudiologistID int64  `json:"audiologist_id"`
	DayOfWeek     string `json:"day_of_week"`
}

type GenerateSlotsRequest struct {
	Windows string `json:"windows"`
}

type SetupWeekRequest struct {
	AudiologistID int64    `json:"audiologist_id"`
	Days          []string `json:"days"`
	Windows       string   `json:"windows,omitempty"`
}

type ProductRequest struct {
	Manufacturer    string          `json:"manufacturer"`
	Model           string          `json:"model"`
	Features        string          `json:"features"`
	Price           decimal.Decimal `json:"price"`
	QuantityInStock int             `json:"quantity_in_stock"`
}

type PriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

type StockRequest struct {
	Quantity int    `json:"quantity"`
	Type     string `json:"transaction_type,omitempty"`
	Reason   string `json:"reason"`
}

type OrderLineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type OrderRequest struct {
	PatientID int64              `json:"patient_id"`
	Lines     []OrderLineRequest `json:"lines"`
}

type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

type AppointmentResponse struct {
	ID               int64           `json:"id"`
	PatientID        int64           `json:"patient_id"`
	AudiologistID    int64           `json:"audiologist_id"`
	Date             string          `json:"date"`
	TimeSlotID       int64           `json:"time_slot_id"`
	Purpose          string          `json:"purpose_of_visit,omitempty"`
	Status           string          `json:"status"`
	Fee              decimal.Decimal `json:"fee"`
	FollowUpRequired bool            `json:"follow_up_required"`
	FollowUpDate     string          `json:"follow_up_date,omitempty"`
}

func toAppointment(a domain.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:               a.ID,
		PatientID:        a.PatientID,
		AudiologistID:    a.AudiologistID,
		Date:             a.Date.Format(dateLayout),
		TimeSlotID:       a.TimeSlotID,
		Purpose:          a.PurposeOfVisit,
		Status:           string(a.Status),
		Fee:              a.Fee,
		FollowUpRequired: a.FollowUpRequired,
	}
	if a.FollowUpDate != nil {
		resp.FollowUpDate = a.FollowUpDate.Format(dateLayout)
	}
	return resp
}

type PrescriptionResponse struct {
	ID            int64     `json:"id"`
	AppointmentID int64     `json:"appointment_id"`
	ProductID     *int64    `json:"product_id,omitempty"`
	PrescribedBy  int64     `json:"prescribed_by"`
	PrescribedAt  time.Time `json:"prescribed_date"`
	Notes         string    `json:"notes,omitempty"`
}

type CompletionResponse struct {
	Appointment  AppointmentResponse   `json:"appointment"`
	Prescription *PrescriptionResponse `json:"prescription,omitempty"`
	Warning      string                `json:"warning,omitempty"`
}

type SlotResponse struct {
	ID          int64  `json:"id"`
	ScheduleID  int64  `json:"schedule_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
}

func toSlot(s domain.TimeSlot) SlotResponse {
	return SlotResponse{
		ID:          s.ID,
		ScheduleID:  s.ScheduleID,
		StartTime:   s.StartTime.String(),
		EndTime:     s.EndTime.String(),
		IsAvailable: s.IsAvailable,
	}
}

type SlotAvailabilityResponse struct {
	SlotResponse
	Free bool `json:"free"`
}

type ScheduleResponse struct {
	ID            int64  `json:"id"`
	AudiologistID int64  `json:"audiologist_id"`
	DayOfWeek     string `json:"day_of_week"`
}

func toSchedule(s domain.Schedule) ScheduleResponse {
	return ScheduleResponse{ID: s.ID, AudiologistID: s.AudiologistID, DayOfWeek: s.DayOfWeek.String()}
}

type RecordResponse struct {
	ID             int64     `json:"id"`
	PatientID      int64     `json:"patient_id"`
	AppointmentID  int64     `json:"appointment_id"`
	ChiefComplaint string    `json:"chief_complaint"`
	Diagnosis      string    `json:"diagnosis"`
	TreatmentPlan  string    `json:"treatment_plan"`
	RecordDate     time.Time `json:"record_date"`
}

func toRecord(r domain.MedicalRecord) RecordResponse {
	return RecordResponse{
		ID:             r.ID,
		PatientID:      r.PatientID,
		AppointmentID:  r.AppointmentID,
		ChiefComplaint: r.ChiefComplaint,
		Diagnosis:      r.Diagnosis,
		TreatmentPlan:  r.TreatmentPlan,
		RecordDate:     r.RecordDate,
	}
}

type AudiogramPoint struct {
	Ear       string `json:"ear"`
	Frequency int    `json:"frequency"`
	Threshold int    `json:"threshold"`
}

type HearingTestResponse struct {
	ID            int64            `json:"id"`
	RecordID      int64            `json:"record_id"`
	TestType      string           `json:"test_type"`
	TestDate      time.Time        `json:"test_date"`
	Notes         string           `json:"test_notes,omitempty"`
	AudiogramData []AudiogramPoint `json:"audiogram_data,omitempty"`
}

func toHearingTest(t domain.HearingTest, data []domain.AudiogramData) HearingTestResponse {
	resp := HearingTestResponse{
		ID:       t.ID,
		RecordID: t.RecordID,
		TestType: string(t.TestType),
		TestDate: t.TestDate,
		Notes:    t.TestNotes,
	}
	for _, d := range data {
		resp.AudiogramData = append(resp.AudiogramData, AudiogramPoint{Ear: string(d.Ear), Frequency: d.Frequency, Threshold: d.Threshold})
	}
	return resp
}

type VisitResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	PatientName string              `json:"patient_name"`
	Slot        string              `json:"slot"`
	Record      *RecordResponse     `json:"record,omitempty"`
}

func toVisit(v query.AppointmentView) VisitResponse {
	resp := VisitResponse{
		Appointment: toAppointment(v.Appointment),
		PatientName: v.Patient.FullName(),
		Slot:        v.Slot.Label(),
	}
	if v.Record != nil {
		rec := toRecord(*v.Record)
		resp.Record = &rec
	}
	return resp
}

type HistoryResponse struct {
	Record RecordResponse      `json:"record"`
	Test   HearingTestResponse `json:"test"`
}

type ProductResponse struct {
	ID              int64           `json:"id"`
	Manufacturer    string          `json:"manufacturer"`
	Model           string          `json:"model"`
	Features        string          `json:"features,omitempty"`
	Price           decimal.Decimal `json:"price"`
	QuantityInStock int             `json:"quantity_in_stock"`
}

func toProduct(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:              p.ID,
		Manufacturer:    p.Manufacturer,
		Model:           p.Model,
		Features:        p.Features,
		Price:           p.Price,
		QuantityInStock: p.QuantityInStock,
	}
}

type LedgerEntryResponse struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	Type        string    `json:"transaction_type"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason,omitempty"`
	Date        time.Time `json:"transaction_date"`
	ProcessedBy int64     `json:"processed_by"`
}

func toLedgerEntry(t domain.InventoryTransaction) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:          t.ID,
		ProductID:   t.ProductID,
		Type:        string(t.Type),
		Quantity:    t.Quantity,
		Reason:      t.Reason,
		Date:        t.TransactionDate,
		ProcessedBy: t.ProcessedBy,
	}
}

type StockResponse struct {
	TransactionID int64 `json:"transaction_id"`
}

type ReconciliationResponse struct {
	ProductID  int64 `json:"product_id"`
	Cached     int   `json:"cached"`
	Replayed   int   `json:"replayed"`
	Entries    int   `json:"entries"`
	Consistent bool  `json:"consistent"`
}

type OrderItemResponse struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type OrderResponse struct {
	ID        int64               `json:"id"`
	PatientID int64               `json:"patient_id"`
	Status    string              `json:"status"`
	OrderDate time.Time           `json:"order_date"`
	Items     []OrderItemResponse `json:"items"`
	Total     decimal.Decimal     `json:"total"`
}

type InvoiceResponse struct {
	ID            int64           `json:"id"`
	PatientID     int64           `json:"patient_id"`
	OrderID       *int64          `json:"order_id,omitempty"`
	AppointmentID *int64          `json:"appointment_id,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	IssuedAt      time.Time       `json:"issued_at"`
	Outstanding   decimal.Decimal `json:"outstanding"`
}

func toInvoice(inv domain.Invoice, outstanding decimal.Decimal) InvoiceResponse {
	return InvoiceResponse{
		ID:            inv.ID,
		PatientID:     inv.PatientID,
		OrderID:       inv.OrderID,
		AppointmentID: inv.AppointmentID,
		TotalAmount:   inv.TotalAmount,
		Status:        string(inv.Status),
		IssuedAt:      inv.IssuedAt,
		Outstanding:   outstanding,
	}
}

type PaymentResponse struct {
	ID      int64           `json:"id"`
	Amount  decimal.Decimal `json:"amount"`
	Method  string          `json:"method"`
	PaidAt  time.Time       `json:"paid_at"`
	Invoice InvoiceResponse `json:"invoice"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
