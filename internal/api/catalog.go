package api

import (
	"net/http"
	"time"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/query"
	"github.com/hackgods/clinic-ops/internal/scheduling"
)

func createScheduleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		day, err := parseWeekday(req.DayOfWeek)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		sched, err := svc.CreateSchedule(r.Context(), actorFrom(r.Context()), req.AudiologistID, day)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSchedule(*sched))
	}
}

func generateSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		var req GenerateSlotsRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		windows, err := domain.ParseWindows(req.Windows)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		slots, err := svc.GenerateSlots(r.Context(), actorFrom(r.Context()), id, windows)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlot(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// setupWeekHandler creates schedules and slots for several weekdays at once.
// Windows default to the configured clinic hours.
func setupWeekHandler(svc *scheduling.Service, defaults []domain.Window) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetupWeekRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		days := make([]time.Weekday, 0, len(req.Days))
		for _, raw := range req.Days {
			d, err := parseWeekday(raw)
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			days = append(days, d)
		}
		windows := defaults
		if req.Windows != "" {
			var err error
			if windows, err = domain.ParseWindows(req.Windows); err != nil {
				writeDomainError(w, r, err)
				return
			}
		}

		scheds, err := svc.SetupWeek(r.Context(), actorFrom(r.Context()), req.AudiologistID, days, windows)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		resp := make([]ScheduleResponse, 0, len(scheds))
		for _, s := range scheds {
			resp = append(resp, toSchedule(s))
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func slotsForDateHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		date, err := queryDate(r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		slots, err := svc.SlotsForDate(r.Context(), id, date)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		resp := make([]SlotAvailabilityResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, SlotAvailabilityResponse{SlotResponse: toSlot(s.Slot), Free: s.Free})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func audiologistDayHandler(q *query.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		date, err := queryDate(r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		views, err := q.AudiologistDay(r.Context(), id, date)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeVisits(w, views)
	}
}

func patientAppointmentsHandler(q *query.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		views, err := q.PatientAppointments(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeVisits(w, views)
	}
}

func writeVisits(w http.ResponseWriter, views []query.AppointmentView) {
	resp := make([]VisitResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toVisit(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func hearingHistoryHandler(q *query.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		history, err := q.PatientHearingHistory(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		resp := make([]HistoryResponse, 0, len(history))
		for _, h := range history {
			resp = append(resp, HistoryResponse{
				Record: toRecord(h.Record),
				Test:   toHearingTest(h.Test, h.AudiogramData),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func optionsHandler(list func(r *http.Request) ([]query.SelectionItem, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := list(r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func freeSlotOptions(q *query.Service) func(r *http.Request) ([]query.SelectionItem, error) {
	return func(r *http.Request) ([]query.SelectionItem, error) {
		audID, err := queryID(r, "audiologist_id")
		if err != nil {
			return nil, err
		}
		date, err := queryDate(r)
		if err != nil {
			return nil, err
		}
		return q.FreeSlotOptions(r.Context(), audID, date)
	}
}
