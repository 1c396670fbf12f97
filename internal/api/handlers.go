package api

import (
	"net/http"
	"time"

	"github.com/hackgods/clinic-ops/internal/appointment"
	"github.com/hackgods/clinic-ops/internal/billing"
	"github.com/hackgods/clinic-ops/internal/domain"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		date, err := domain.ParseDate(req.Date)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), actorFrom(r.Context()), appointment.CreateRequest{
			PatientID:     req.PatientID,
			AudiologistID: req.AudiologistID,
			Date:          date,
			TimeSlotID:    req.TimeSlotID,
			Purpose:       req.Purpose,
			InitialStatus: domain.AppointmentStatus(req.Status),
			Fee:           req.Fee,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointment(*appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointment(*appt))
	}
}

// transitionHandler serves the confirm and cancel endpoints.
func transitionHandler(op func(r *http.Request, actor domain.Actor, id int64) (*domain.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		appt, err := op(r, actorFrom(r.Context()), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointment(*appt))
	}
}

func confirmAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, actor domain.Actor, id int64) (*domain.Appointment, error) {
		return svc.ConfirmAppointment(r.Context(), actor, id)
	})
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, actor domain.Actor, id int64) (*domain.Appointment, error) {
		return svc.CancelAppointment(r.Context(), actor, id)
	})
}

func recordHearingTestHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apptID, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		var req HearingTestRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}

		in := appointment.HearingTestRequest{
			PatientID:     req.PatientID,
			AppointmentID: apptID,
			AudiologistID: req.AudiologistID,
			TestType:      domain.TestType(req.TestType),
			Notes:         req.Notes,
		}
		if req.Record != nil {
			in.Record = &appointment.RecordContent{
				ChiefComplaint: req.Record.ChiefComplaint,
				Diagnosis:      req.Record.Diagnosis,
				TreatmentPlan:  req.Record.TreatmentPlan,
			}
		}
		for _, p := range req.DataPoints {
			in.DataPoints = append(in.DataPoints, appointment.DataPoint{Ear: domain.Ear(p.Ear), Frequency: p.Frequency, Threshold: p.Threshold})
		}

		testID, err := svc.RecordHearingTest(r.Context(), actorFrom(r.Context()), in)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"hearing_test_id": testID})
	}
}

func completeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		var req CompleteAppointmentRequest
		if r.ContentLength != 0 {
			if err := decode(r, &req); err != nil {
				writeDomainError(w, r, err)
				return
			}
		}

		in := appointment.CompleteRequest{}
		if req.Prescription != nil {
			in.Prescribe = &appointment.PrescribeRequest{ProductID: req.Prescription.ProductID, Notes: req.Prescription.Notes}
		}
		if req.FollowUpDate != "" {
			d, err := domain.ParseDate(req.FollowUpDate)
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			in.FollowUpDate = &d
		}

		res, err := svc.CompleteAppointment(r.Context(), actorFrom(r.Context()), id, in)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		resp := CompletionResponse{Appointment: toAppointment(res.Appointment)}
		if p := res.Prescription; p != nil {
			resp.Prescription = &PrescriptionResponse{
				ID:            p.ID,
				AppointmentID: p.AppointmentID,
				ProductID:     p.ProductID,
				PrescribedBy:  p.PrescribedBy,
				PrescribedAt:  p.PrescribedDate,
				Notes:         p.Notes,
			}
		}
		if res.PrescriptionErr != nil {
			resp.Warning = res.PrescriptionErr.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func updateRecordHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		var req RecordContentRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		rec, err := svc.UpdateRecordNotes(r.Context(), actorFrom(r.Context()), id, appointment.RecordContent{
			ChiefComplaint: req.ChiefComplaint,
			Diagnosis:      req.Diagnosis,
			TreatmentPlan:  req.TreatmentPlan,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecord(*rec))
	}
}

func updateTestNotesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		var req TestNotesRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		ht, err := svc.UpdateTestNotes(r.Context(), actorFrom(r.Context()), id, req.Notes)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toHearingTest(*ht, nil))
	}
}

func invoiceAppointmentHandler(svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		inv, err := svc.InvoiceAppointment(r.Context(), actorFrom(r.Context()), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toInvoice(*inv, inv.TotalAmount))
	}
}

func reconcileHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := domain.RequireRole(actorFrom(r.Context()), "reconcile availability", domain.RoleAdmin); err != nil {
			writeDomainError(w, r, err)
			return
		}
		stats, err := svc.ReconcileAvailability(r.Context(), time.Now().UTC())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{
			"slots":    stats.Slots,
			"freed":    stats.Freed,
			"occupied": stats.Occupied,
		})
	}
}
