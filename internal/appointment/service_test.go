package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-ops/internal/config"
	"github.com/hackgods/clinic-ops/internal/domain"
	redisclient "github.com/hackgods/clinic-ops/internal/redis"
	"github.com/hackgods/clinic-ops/internal/scheduling"
	"github.com/hackgods/clinic-ops/internal/store"
	"github.com/hackgods/clinic-ops/internal/store/storetest"
)

func newService(t *testing.T) (*Service, *storetest.Clinic) {
	t.Helper()
	c := storetest.NewClinic(t)
	cfg := config.Config{DefaultFee: decimal.RequireFromString("50.00")}
	svc := NewService(c.Store, redisclient.NewLocalLocker(2*time.Second), cfg, zerolog.Nop())
	svc.now = func() time.Time { return storetest.Monday.Add(8 * time.Hour) }
	return svc, c
}

func bookingFor(c *storetest.Clinic, slot int) CreateRequest {
	return CreateRequest{
		PatientID:     c.Patient.ID,
		AudiologistID: c.Audiologist.ID,
		Date:          storetest.Monday,
		TimeSlotID:    c.Slots[slot].ID,
		Purpose:       "Annual hearing check",
	}
}

func TestCreateAppointmentMondayBooking(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	appt, err := svc.CreateAppointment(ctx, c.Receptionist, bookingFor(c, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, appt.Status)
	assert.Equal(t, storetest.Monday, appt.Date)
	assert.True(t, decimal.RequireFromString("50").Equal(appt.Fee))
	require.NotNil(t, appt.CreatedBy)
	assert.Equal(t, c.Receptionist.UserID, *appt.CreatedBy)

	_, err = svc.CreateAppointment(ctx, c.Receptionist, bookingFor(c, 0))
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)

	slots, err := scheduling.NewService(c.Store, zerolog.Nop()).SlotsForDate(ctx, c.Audiologist.ID, storetest.Monday)
	require.NoError(t, err)
	assert.False(t, slots[0].Free)
	assert.True(t, slots[1].Free)

	// same slot one week later is a different occurrence
	next := bookingFor(c, 0)
	next.Date = storetest.Monday.AddDate(0, 0, 7)
	_, err = svc.CreateAppointment(ctx, c.Receptionist, next)
	assert.NoError(t, err)
}

func TestCreateAppointmentConcurrentSameSlot(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	const callers = 20
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateAppointment(ctx, c.Receptionist, bookingFor(c, 2))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
	}
	assert.Equal(t, 1, succeeded)

	require.NoError(t, c.Store.View(ctx, func(r store.Reader) error {
		active, err := r.ListAppointments(ctx, store.ActiveOn(c.Slots[2].ID, storetest.Monday))
		require.NoError(t, err)
		assert.Len(t, active, 1)
		return nil
	}))
}

func TestCreateAppointmentValidation(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	otherAudiologist := bookingFor(c, 0)
	otherAudiologist.AudiologistID = c.Colleague.ID
	_, err := svc.CreateAppointment(ctx, c.Receptionist, otherAudiologist)
	assert.ErrorIs(t, err, domain.ErrValidation)

	tuesday := bookingFor(c, 0)
	tuesday.Date = storetest.Monday.AddDate(0, 0, 1)
	_, err = svc.CreateAppointment(ctx, c.Receptionist, tuesday)
	assert.ErrorIs(t, err, domain.ErrValidation)

	unknownPatient := bookingFor(c, 0)
	unknownPatient.PatientID = 999
	_, err = svc.CreateAppointment(ctx, c.Receptionist, unknownPatient)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	unknownSlot := bookingFor(c, 0)
	unknownSlot.TimeSlotID = 999
	_, err = svc.CreateAppointment(ctx, c.Receptionist, unknownSlot)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	badStatus := bookingFor(c, 0)
	badStatus.InitialStatus = domain.StatusCompleted
	_, err = svc.CreateAppointment(ctx, c.Receptionist, badStatus)
	assert.ErrorIs(t, err, domain.ErrValidation)

	negativeFee := bookingFor(c, 0)
	fee := decimal.NewFromInt(-1)
	negativeFee.Fee = &fee
	_, err = svc.CreateAppointment(ctx, c.Receptionist, negativeFee)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateAppointmentPatientRules(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	confirmed := bookingFor(c, 0)
	confirmed.InitialStatus = domain.StatusConfirmed
	_, err := svc.CreateAppointment(ctx, c.PatientActor, confirmed)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	forSomeoneElse := bookingFor(c, 0)
	forSomeoneElse.PatientID = c.Walkin.ID
	_, err = svc.CreateAppointment(ctx, c.PatientActor, forSomeoneElse)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	own, err := svc.CreateAppointment(ctx, c.PatientActor, bookingFor(c, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, own.Status)

	staffConfirmed := bookingFor(c, 1)
	staffConfirmed.InitialStatus = domain.StatusConfirmed
	got, err := svc.CreateAppointment(ctx, c.Receptionist, staffConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
}

func TestCreateAppointmentAnonymousIsForbidden(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	for _, patientID := range []int64{c.Walkin.ID, c.Patient.ID} {
		req := bookingFor(c, 2)
		req.PatientID = patientID
		_, err := svc.CreateAppointment(ctx, domain.Actor{}, req)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	}

	// an unlinked patient role owns nobody
	_, err := svc.CreateAppointment(ctx, domain.Actor{Role: domain.RolePatient}, bookingFor(c, 2))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	slots, err := scheduling.NewService(c.Store, zerolog.Nop()).SlotsForDate(ctx, c.Audiologist.ID, storetest.Monday)
	require.NoError(t, err)
	assert.True(t, slots[2].Free)
}

func TestLifecycleCompleteScenario(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	appt, err := svc.CreateAppointment(ctx, c.Receptionist, bookingFor(c, 0))
	require.NoError(t, err)

	_, err = svc.CompleteAppointment(ctx, c.AudiologistActor, appt.ID, CompleteRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusPending, c.Appointment(t, appt.ID).Status)

	_, err = svc.ConfirmAppointment(ctx, c.Receptionist, appt.ID)
	require.NoError(t, err)

	_, err = svc.CompleteAppointment(ctx, c.AudiologistActor, appt.ID, CompleteRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, domain.StatusConfirmed, c.Appointment(t, appt.ID).Status)

	_, err = svc.RecordHearingTest(ctx, c.AudiologistActor, HearingTestRequest{
		PatientID:     c.Patient.ID,
		AppointmentID: appt.ID,
		AudiologistID: c.Audiologist.ID,
		TestType:      domain.TestPureTone,
		DataPoints:    []DataPoint{{Ear: domain.EarLeft, Frequency: 1000, Threshold: 35}},
	})
	require.NoError(t, err)

	res, err := svc.CompleteAppointment(ctx, c.AudiologistActor, appt.ID, CompleteRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Appointment.Status)
	assert.Nil(t, res.Prescription)
	assert.NoError(t, res.PrescriptionErr)

	_, err = svc.CompleteAppointment(ctx, c.AudiologistActor, appt.ID, CompleteRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCompleteRequiresAssignedAudiologist(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)
	appt := confirmedWithTest(t, svc, c)

	_, err := svc.CompleteAppointment(ctx, c.ColleagueActor, appt.ID, CompleteRequest{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.CompleteAppointment(ctx, c.Admin, appt.ID, CompleteRequest{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCompletePrescriptionIsBestEffort(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)
	appt := confirmedWithTest(t, svc, c)

	missing := int64(999)
	followUp := storetest.Monday.AddDate(0, 3, 0)
	res, err := svc.CompleteAppointment(ctx, c.AudiologistActor, appt.ID, CompleteRequest{
		Prescribe:    &PrescribeRequest{ProductID: &missing, Notes: "trial fitting"},
		FollowUpDate: &followUp,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Appointment.Status)
	assert.True(t, res.Appointment.FollowUpRequired)
	assert.Equal(t, followUp, *res.Appointment.FollowUpDate)
	assert.Nil(t, res.Prescription)
	assert.ErrorIs(t, res.PrescriptionErr, domain.ErrPrescriptionSkipped)
	assert.ErrorIs(t, res.PrescriptionErr, domain.ErrNotFound)

	assert.Equal(t, domain.StatusCompleted, c.Appointment(t, appt.ID).Status)
}

func TestCompleteWritesPrescription(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)
	appt := confirmedWithTest(t, svc, c)

	res, err := svc.CompleteAppointment(ctx, c.AudiologistActor, appt.ID, CompleteRequest{
		Prescribe: &PrescribeRequest{ProductID: &c.Product.ID, Notes: "bilateral fitting"},
	})
	require.NoError(t, err)
	require.NoError(t, res.PrescriptionErr)
	require.NotNil(t, res.Prescription)
	assert.Equal(t, c.Audiologist.ID, res.Prescription.PrescribedBy)

	require.NoError(t, c.Store.View(ctx, func(r store.Reader) error {
		scripts, err := r.ListPrescriptions(ctx, appt.ID)
		require.NoError(t, err)
		assert.Len(t, scripts, 1)
		return nil
	}))
}

func TestCancelRules(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	pending, err := svc.CreateAppointment(ctx, c.PatientActor, bookingFor(c, 0))
	require.NoError(t, err)
	cancelled, err := svc.CancelAppointment(ctx, c.PatientActor, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	// a cancelled booking frees the slot
	_, err = svc.CreateAppointment(ctx, c.Receptionist, bookingFor(c, 0))
	require.NoError(t, err)

	_, err = svc.ConfirmAppointment(ctx, c.Receptionist, pending.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusCancelled, c.Appointment(t, pending.ID).Status)

	confirmed := bookingFor(c, 1)
	confirmed.InitialStatus = domain.StatusConfirmed
	appt, err := svc.CreateAppointment(ctx, c.Receptionist, confirmed)
	require.NoError(t, err)

	_, err = svc.CancelAppointment(ctx, c.PatientActor, appt.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.CancelAppointment(ctx, c.Receptionist, appt.ID)
	require.NoError(t, err)
	_, err = svc.CancelAppointment(ctx, c.Receptionist, appt.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPatientCannotCancelOthers(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	req := bookingFor(c, 0)
	req.PatientID = c.Walkin.ID
	appt, err := svc.CreateAppointment(ctx, c.Receptionist, req)
	require.NoError(t, err)

	_, err = svc.CancelAppointment(ctx, c.PatientActor, appt.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestConfirmIsStaffOnly(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	appt, err := svc.CreateAppointment(ctx, c.PatientActor, bookingFor(c, 0))
	require.NoError(t, err)

	_, err = svc.ConfirmAppointment(ctx, c.PatientActor, appt.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.ConfirmAppointment(ctx, c.Receptionist, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordHearingTest(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	appt, err := svc.CreateAppointment(ctx, c.Receptionist, bookingFor(c, 0))
	require.NoError(t, err)

	req := HearingTestRequest{
		PatientID:     c.Patient.ID,
		AppointmentID: appt.ID,
		AudiologistID: c.Audiologist.ID,
		TestType:      domain.TestPureTone,
		Record:        &RecordContent{ChiefComplaint: "Muffled hearing, left ear"},
		DataPoints: []DataPoint{
			{Ear: domain.EarLeft, Frequency: 500, Threshold: 40},
			{Ear: domain.EarRight, Frequency: 500, Threshold: 20},
		},
	}

	_, err = svc.RecordHearingTest(ctx, c.AudiologistActor, req)
	assert.ErrorIs(t, err, domain.ErrInvalidState, "pending appointments take no tests")

	_, err = svc.ConfirmAppointment(ctx, c.Receptionist, appt.ID)
	require.NoError(t, err)

	_, err = svc.RecordHearingTest(ctx, c.ColleagueActor, req)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	wrongPatient := req
	wrongPatient.PatientID = c.Walkin.ID
	_, err = svc.RecordHearingTest(ctx, c.AudiologistActor, wrongPatient)
	assert.ErrorIs(t, err, domain.ErrValidation)

	badPoint := req
	badPoint.DataPoints = []DataPoint{{Ear: domain.EarLeft, Frequency: 20, Threshold: 40}}
	_, err = svc.RecordHearingTest(ctx, c.AudiologistActor, badPoint)
	assert.ErrorIs(t, err, domain.ErrValidation)

	first, err := svc.RecordHearingTest(ctx, c.AudiologistActor, req)
	require.NoError(t, err)

	// same content or none reuses the record
	speech := req
	speech.TestType = domain.TestSpeech
	speech.Record = nil
	second, err := svc.RecordHearingTest(ctx, c.AudiologistActor, speech)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	conflicting := req
	conflicting.Record = &RecordContent{ChiefComplaint: "Tinnitus"}
	_, err = svc.RecordHearingTest(ctx, c.AudiologistActor, conflicting)
	assert.ErrorIs(t, err, domain.ErrDuplicateRecord)

	require.NoError(t, c.Store.View(ctx, func(r store.Reader) error {
		record, err := r.GetMedicalRecordByAppointment(ctx, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, "Muffled hearing, left ear", record.ChiefComplaint)

		tests, err := r.ListHearingTests(ctx, record.ID)
		require.NoError(t, err)
		assert.Len(t, tests, 2)

		points, err := r.ListAudiogramData(ctx, first)
		require.NoError(t, err)
		assert.Len(t, points, 2)
		return nil
	}))
}

func TestUpdateNotes(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)
	appt := confirmedWithTest(t, svc, c)

	var recordID, testID int64
	require.NoError(t, c.Store.View(ctx, func(r store.Reader) error {
		record, err := r.GetMedicalRecordByAppointment(ctx, appt.ID)
		require.NoError(t, err)
		recordID = record.ID
		tests, err := r.ListHearingTests(ctx, record.ID)
		require.NoError(t, err)
		testID = tests[0].ID
		return nil
	}))

	record, err := svc.UpdateRecordNotes(ctx, c.AudiologistActor, recordID, RecordContent{Diagnosis: "Mild sensorineural loss"})
	require.NoError(t, err)
	assert.Equal(t, "Mild sensorineural loss", record.Diagnosis)

	test, err := svc.UpdateTestNotes(ctx, c.AudiologistActor, testID, "Patient fatigued")
	require.NoError(t, err)
	assert.Equal(t, "Patient fatigued", test.TestNotes)

	_, err = svc.UpdateTestNotes(ctx, c.ColleagueActor, testID, "x")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestReconcileAvailability(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	appt, err := svc.CreateAppointment(ctx, c.Receptionist, bookingFor(c, 3))
	require.NoError(t, err)

	// from the preceding Saturday the next Monday is the booked one
	saturday := storetest.Monday.AddDate(0, 0, -2)
	stats, err := svc.ReconcileAvailability(ctx, saturday)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Slots)
	assert.Equal(t, 1, stats.Occupied)
	assertAvailable(t, c, c.Slots[3].ID, false)

	_, err = svc.CancelAppointment(ctx, c.Receptionist, appt.ID)
	require.NoError(t, err)

	stats, err = svc.ReconcileAvailability(ctx, saturday)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Freed)
	assertAvailable(t, c, c.Slots[3].ID, true)
}

func TestTransitionTable(t *testing.T) {
	all := []domain.AppointmentStatus{domain.StatusPending, domain.StatusConfirmed, domain.StatusCompleted, domain.StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			want := (from == domain.StatusPending && (to == domain.StatusConfirmed || to == domain.StatusCancelled)) ||
				(from == domain.StatusConfirmed && (to == domain.StatusCancelled || to == domain.StatusCompleted))
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestSlotLockTimeoutIsSlotUnavailable(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)
	locker := redisclient.NewLocalLocker(0)
	svc.locker = locker

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithLock(ctx, redisclient.SlotKey(c.Slots[0].ID, storetest.Monday), func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	_, err := svc.CreateAppointment(ctx, c.Receptionist, bookingFor(c, 0))
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
	assert.False(t, errors.Is(err, redisclient.ErrLockNotAcquired))
}

func confirmedWithTest(t *testing.T, svc *Service, c *storetest.Clinic) *domain.Appointment {
	t.Helper()
	ctx := context.Background()
	req := bookingFor(c, 5)
	req.InitialStatus = domain.StatusConfirmed
	appt, err := svc.CreateAppointment(ctx, c.Receptionist, req)
	require.NoError(t, err)
	_, err = svc.RecordHearingTest(ctx, c.AudiologistActor, HearingTestRequest{
		PatientID:     appt.PatientID,
		AppointmentID: appt.ID,
		AudiologistID: appt.AudiologistID,
		TestType:      domain.TestTympanometry,
	})
	require.NoError(t, err)
	return appt
}

func assertAvailable(t *testing.T, c *storetest.Clinic, slotID int64, want bool) {
	t.Helper()
	require.NoError(t, c.Store.View(context.Background(), func(r store.Reader) error {
		slot, err := r.GetTimeSlot(context.Background(), slotID)
		require.NoError(t, err)
		assert.Equal(t, want, slot.IsAvailable)
		return nil
	}))
}
