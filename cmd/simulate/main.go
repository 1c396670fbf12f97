package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-ops/internal/logging"
)

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	BookingRatio   float64
	ConfirmRatio   float64
	CancelRatio    float64
	ReadRatio      float64
	DaysAhead      int
	RaceContenders int
	ActorID        int64
}

// target is one bookable (audiologist, date, slot) triple.
type target struct {
	AudiologistID int64
	Date          string
	SlotID        int64
}

type DataPool struct {
	Patients     []int64
	Audiologists []int64
	Targets      []target
	mu           sync.RWMutex
	appointments []int64
}

func (dp *DataPool) AddAppointment(id int64) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (int64, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return 0, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type selectionItem struct {
	DisplayText string `json:"display_text"`
	ReferenceID int64  `json:"reference_id"`
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics *Metrics
	log     zerolog.Logger
}

type RaceResult struct {
	Target    target
	Created   int64
	Conflicts int64
	Errors    int64
}

func main() {
	cfg := SimConfig{}
	rootCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive booking load against a running api-server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), normalize(cfg))
		},
	}
	f := rootCmd.Flags()
	f.StringVar(&cfg.APIBaseURL, "api", getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "api-server base URL")
	f.DurationVar(&cfg.Duration, "duration", 30*time.Second, "how long to generate load")
	f.IntVar(&cfg.Workers, "workers", 50, "concurrent workers")
	f.Float64Var(&cfg.BookingRatio, "booking-ratio", 0.5, "share of booking requests")
	f.Float64Var(&cfg.ConfirmRatio, "confirm-ratio", 0.15, "share of confirm requests")
	f.Float64Var(&cfg.CancelRatio, "cancel-ratio", 0.05, "share of cancel requests")
	f.Float64Var(&cfg.ReadRatio, "read-ratio", 0.3, "share of read requests")
	f.IntVar(&cfg.DaysAhead, "days", 10, "number of upcoming days to book into")
	f.IntVar(&cfg.RaceContenders, "race", 25, "concurrent bookings fired at one slot before the load phase (0 disables)")
	f.Int64Var(&cfg.ActorID, "actor-id", 1, "user id sent as the receptionist actor")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func normalize(cfg SimConfig) SimConfig {
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.APIBaseURL == "" {
		return errors.New("--api is required")
	}
	if cfg.Workers <= 0 {
		return errors.New("--workers must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("--duration must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return errors.New("--days must be > 0")
	}
	return nil
}

func run(ctx context.Context, cfg SimConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	logger := logging.New(getEnv("APP_ENV", "dev"), "simulate")

	sim := &Simulator{
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		metrics: &Metrics{},
		log:     logger,
	}

	pool, err := sim.loadDataPool(ctx)
	if err != nil {
		return fmt.Errorf("load data pool: %w", err)
	}
	sim.pool = pool
	logger.Info().
		Int("patients", len(pool.Patients)).
		Int("audiologists", len(pool.Audiologists)).
		Int("free_slots", len(pool.Targets)).
		Msg("data pool loaded")

	var race *RaceResult
	if cfg.RaceContenders > 1 {
		res, err := sim.RunRace(ctx)
		if err != nil {
			return fmt.Errorf("booking race: %w", err)
		}
		race = &res
	}

	if err := sim.Run(ctx); err != nil {
		return err
	}
	sim.PrintReport(race)

	if race != nil && race.Created > 1 {
		return fmt.Errorf("slot %d on %s was booked %d times", race.Target.SlotID, race.Target.Date, race.Created)
	}
	return nil
}

// upcomingDates returns the next n weekdays after now, formatted YYYY-MM-DD.
func upcomingDates(now time.Time, n int) []string {
	var out []string
	for d := now.AddDate(0, 0, 1); len(out) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, d.Format(time.DateOnly))
	}
	return out
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	pool := &DataPool{}

	var patients, audiologists []selectionItem
	if err := s.getJSON(ctx, "/options/patients", &patients); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if err := s.getJSON(ctx, "/options/audiologists", &audiologists); err != nil {
		return nil, fmt.Errorf("load audiologists: %w", err)
	}
	for _, p := range patients {
		pool.Patients = append(pool.Patients, p.ReferenceID)
	}
	for _, a := range audiologists {
		pool.Audiologists = append(pool.Audiologists, a.ReferenceID)
	}
	if len(pool.Patients) == 0 {
		return nil, errors.New("no patients loaded, run seed first")
	}
	if len(pool.Audiologists) == 0 {
		return nil, errors.New("no audiologists loaded, run seed first")
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, audID := range pool.Audiologists {
		for _, date := range upcomingDates(time.Now(), s.config.DaysAhead) {
			audID, date := audID, date
			g.Go(func() error {
				q := url.Values{}
				q.Set("audiologist_id", strconv.FormatInt(audID, 10))
				q.Set("date", date)
				var slots []selectionItem
				status, err := s.getJSONStatus(gctx, "/options/slots?"+q.Encode(), &slots)
				if err != nil {
					return err
				}
				// no schedule for that weekday
				if status == http.StatusUnprocessableEntity {
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				for _, slot := range slots {
					pool.Targets = append(pool.Targets, target{AudiologistID: audID, Date: date, SlotID: slot.ReferenceID})
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	if len(pool.Targets) == 0 {
		return nil, errors.New("no free slots in the booking window")
	}
	return pool, nil
}

// RunRace fires RaceContenders bookings for the same slot at once. At most one
// may be created.
func (s *Simulator) RunRace(ctx context.Context) (RaceResult, error) {
	res := RaceResult{Target: s.pool.Targets[0]}
	start := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.RaceContenders; i++ {
		patientID := s.pool.Patients[i%len(s.pool.Patients)]
		g.Go(func() error {
			<-start
			status, body, err := s.do(gctx, http.MethodPost, "/appointments", s.bookingBody(res.Target, patientID))
			switch classify(status, err, http.StatusCreated) {
			case OutcomeSuccess:
				atomic.AddInt64(&res.Created, 1)
				if id, ok := appointmentID(body); ok {
					s.pool.AddAppointment(id)
				}
			case OutcomeConflict:
				atomic.AddInt64(&res.Conflicts, 1)
			default:
				atomic.AddInt64(&res.Errors, 1)
			}
			return nil
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		return res, err
	}

	s.log.Info().
		Int64("slot_id", res.Target.SlotID).
		Str("date", res.Target.Date).
		Int64("created", res.Created).
		Int64("conflicts", res.Conflicts).
		Int64("errors", res.Errors).
		Msg("booking race finished")
	return res, nil
}

func (s *Simulator) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Workers; i++ {
		i := i
		g.Go(func() error {
			s.worker(gctx, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.log.Info().Msg("simulation complete")
	return nil
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.ConfirmRatio:
			s.doTransition(ctx, rng, "confirm", &s.metrics.Confirm)
		case r < s.config.BookingRatio+s.config.ConfirmRatio+s.config.CancelRatio:
			s.doTransition(ctx, rng, "cancel", &s.metrics.Cancel)
		default:
			switch rng.Intn(3) {
			case 0:
				s.doReadByID(ctx, rng)
			case 1:
				s.doAudiologistDay(ctx, rng)
			case 2:
				s.doFreeSlots(ctx, rng)
			}
		}
	}
}

func (s *Simulator) bookingBody(t target, patientID int64) map[string]any {
	return map[string]any{
		"patient_id":       patientID,
		"audiologist_id":   t.AudiologistID,
		"date":             t.Date,
		"time_slot_id":     t.SlotID,
		"purpose_of_visit": "Hearing assessment",
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	status, body, err := s.do(ctx, http.MethodPost, "/appointments", s.bookingBody(t, patientID))
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	outcome := classify(status, err, http.StatusCreated)
	if outcome == OutcomeSuccess {
		if id, ok := appointmentID(body); ok {
			s.pool.AddAppointment(id)
		}
	}
	s.metrics.Booking.Record(latency, outcome)
}

func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand, action string, om *OperationMetrics) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, _, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/appointments/%d/%s", apptID, action), nil)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}
	om.Record(latency, classify(status, err, http.StatusOK))
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	s.timedGet(ctx, fmt.Sprintf("/appointments/%d", apptID), &s.metrics.ReadByID)
}

func (s *Simulator) doAudiologistDay(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	s.timedGet(ctx, fmt.Sprintf("/audiologists/%d/appointments?date=%s", t.AudiologistID, t.Date), &s.metrics.AudiologistDay)
}

func (s *Simulator) doFreeSlots(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	s.timedGet(ctx, fmt.Sprintf("/options/slots?audiologist_id=%d&date=%s", t.AudiologistID, t.Date), &s.metrics.FreeSlots)
}

func (s *Simulator) timedGet(ctx context.Context, path string, om *OperationMetrics) {
	start := time.Now()
	status, _, err := s.do(ctx, http.MethodGet, path, nil)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}
	om.Record(latency, classify(status, err, http.StatusOK))
}

func (s *Simulator) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Actor-ID", strconv.FormatInt(s.config.ActorID, 10))
	req.Header.Set("X-Actor-Role", "receptionist")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func (s *Simulator) getJSONStatus(ctx context.Context, path string, out any) (int, error) {
	status, data, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return status, err
	}
	if status != http.StatusOK {
		return status, nil
	}
	return status, json.Unmarshal(data, out)
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	status, err := s.getJSONStatus(ctx, path, out)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, status)
	}
	return nil
}

func appointmentID(body []byte) (int64, bool) {
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == 0 {
		return 0, false
	}
	return resp.ID, true
}

func (s *Simulator) PrintReport(race *RaceResult) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	if race != nil {
		fmt.Printf("Booking race (slot %d on %s, %d contenders):\n", race.Target.SlotID, race.Target.Date, s.config.RaceContenders)
		fmt.Printf("  Created: %d\n", race.Created)
		fmt.Printf("  Conflicts: %d\n", race.Conflicts)
		if race.Errors > 0 {
			fmt.Printf("  Errors: %d\n", race.Errors)
		}
		fmt.Println()
	}

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Audiologist day", &s.metrics.AudiologistDay)
	printOperationReport("Free slots", &s.metrics.FreeSlots)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
