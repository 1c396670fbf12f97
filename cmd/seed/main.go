package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-ops/internal/app"
	"github.com/hackgods/clinic-ops/internal/config"
	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/logging"
	"github.com/hackgods/clinic-ops/internal/store"
)

type seedOptions struct {
	audiologists int
	patients     int
	products     int
}

func main() {
	var opts seedOptions
	rootCmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the configured store with demo clinic data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	rootCmd.Flags().IntVar(&opts.audiologists, "audiologists", 8, "number of audiologists to create")
	rootCmd.Flags().IntVar(&opts.patients, "patients", 500, "number of patients to create")
	rootCmd.Flags().IntVar(&opts.products, "products", 12, "number of hearing-aid products to create")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}
	logger := logging.New(cfg.Env, "seed")
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn().Msg("STORE_DRIVER=memory: seeded data disappears when this process exits")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	faker := gofakeit.New(0)
	logger.Info().Int("audiologists", opts.audiologists).Int("patients", opts.patients).Int("products", opts.products).Msg("seed starting")

	admin, audiologists, err := seedStaff(ctx, rt.Store, faker, opts.audiologists)
	if err != nil {
		return fmt.Errorf("seed staff: %w", err)
	}
	if err := seedPatients(ctx, rt.Store, faker, opts.patients); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}

	svc := rt.Services()
	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	for _, aud := range audiologists {
		if _, err := svc.Scheduling.SetupWeek(ctx, admin, aud.ID, weekdays, cfg.SlotWindows); err != nil {
			return fmt.Errorf("setup week for audiologist %d: %w", aud.ID, err)
		}
	}

	if err := seedProducts(ctx, svc.Inventory.CreateProduct, admin, faker, opts.products, logger); err != nil {
		return fmt.Errorf("seed products: %w", err)
	}

	logger.Info().Msg("seed complete")
	return nil
}

// seedStaff creates one admin user plus the audiologists, each with a login.
func seedStaff(ctx context.Context, st store.Store, faker *gofakeit.Faker, count int) (domain.Actor, []domain.Audiologist, error) {
	specializations := []string{
		"Pediatric audiology",
		"Cochlear implants",
		"Tinnitus management",
		"Vestibular assessment",
		"Hearing aid fitting",
		"Industrial audiology",
	}

	var admin domain.Actor
	var out []domain.Audiologist
	err := st.Update(ctx, func(tx store.Tx) error {
		u := &domain.User{Username: "admin", Role: domain.RoleAdmin}
		if err := tx.InsertUser(ctx, u); err != nil {
			return err
		}
		admin = domain.Actor{UserID: u.ID, Role: domain.RoleAdmin}

		for i := 0; i < count; i++ {
			first, last := faker.FirstName(), faker.LastName()
			login := &domain.User{Username: fmt.Sprintf("%s.%s%d", first, last, i), Role: domain.RoleAudiologist}
			if err := tx.InsertUser(ctx, login); err != nil {
				return err
			}
			aud := &domain.Audiologist{
				UserID:         login.ID,
				FirstName:      first,
				LastName:       last,
				Specialization: specializations[faker.Number(0, len(specializations)-1)],
			}
			if err := tx.InsertAudiologist(ctx, aud); err != nil {
				return err
			}
			out = append(out, *aud)
		}
		return nil
	})
	return admin, out, err
}

func seedPatients(ctx context.Context, st store.Store, faker *gofakeit.Faker, count int) error {
	oldest := time.Date(1935, 1, 1, 0, 0, 0, 0, time.UTC)
	youngest := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)

	return st.Update(ctx, func(tx store.Tx) error {
		for i := 0; i < count; i++ {
			born := faker.DateRange(oldest, youngest)
			p := &domain.Patient{
				FirstName:   faker.FirstName(),
				LastName:    faker.LastName(),
				DateOfBirth: domain.DateOf(born),
				Phone:       faker.Phone(),
				Email:       faker.Email(),
			}
			if err := tx.InsertPatient(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

type createProductFunc func(ctx context.Context, actor domain.Actor, p domain.Product) (*domain.Product, error)

func seedProducts(ctx context.Context, create createProductFunc, admin domain.Actor, faker *gofakeit.Faker, count int, logger zerolog.Logger) error {
	manufacturers := []string{"Phonak", "Oticon", "Signia", "ReSound", "Widex", "Starkey"}
	styles := []string{"BTE", "RIC", "ITE", "CIC", "IIC"}
	features := []string{
		"Bluetooth streaming",
		"Rechargeable",
		"Tinnitus masker",
		"Telecoil",
		"Water resistant",
	}

	for i := 0; i < count; i++ {
		p := domain.Product{
			Manufacturer:    manufacturers[faker.Number(0, len(manufacturers)-1)],
			Model:           fmt.Sprintf("%s %d", styles[faker.Number(0, len(styles)-1)], faker.Number(10, 99)),
			Features:        features[faker.Number(0, len(features)-1)],
			Price:           decimal.NewFromInt(int64(faker.Number(8, 40) * 50)),
			QuantityInStock: faker.Number(0, 25),
		}
		created, err := create(ctx, admin, p)
		if err != nil {
			return err
		}
		logger.Debug().Int64("product_id", created.ID).Str("product", created.Label()).Msg("product seeded")
	}
	return nil
}
