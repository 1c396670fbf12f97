// Package billing turns product orders and completed appointments into
// invoices and tracks payments against them.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/inventory"
	"github.com/hackgods/clinic-ops/internal/metrics"
	"github.com/hackgods/clinic-ops/internal/store"
)

type Service struct {
	store     store.Store
	inventory *inventory.Service
	log       zerolog.Logger
}

func NewService(st store.Store, inv *inventory.Service, logger zerolog.Logger) *Service {
	return &Service{
		store:     st,
		inventory: inv,
		log:       logger.With().Str("component", "billing").Logger(),
	}
}

type OrderLine struct {
	ProductID int64
	Quantity  int
}

// PlaceOrder sells products to a patient. Each line snapshots the current
// price and takes its units out of stock; if any line cannot be filled the
// whole order is rejected.
func (s *Service) PlaceOrder(ctx context.Context, actor domain.Actor, patientID int64, lines []OrderLine) (*domain.Order, []domain.OrderItem, error) {
	if err := domain.RequireStaff(actor, "place orders"); err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, domain.Invalid("lines", "an order needs at least one line")
	}
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 || l.Quantity > domain.MaxQuantity {
			return nil, nil, fmt.Errorf("line for product %d has %d units: %w", l.ProductID, l.Quantity, domain.ErrInvalidQuantity)
		}
		ids = append(ids, l.ProductID)
	}

	var order *domain.Order
	var items []domain.OrderItem
	var moved []domain.InventoryTransaction
	err := s.inventory.WithProductLocks(ctx, ids, func(lockCtx context.Context) error {
		return s.store.Update(lockCtx, func(tx store.Tx) error {
			items, moved = nil, nil
			if _, err := tx.GetPatient(lockCtx, patientID); err != nil {
				return err
			}
			now := s.inventory.Now()
			order = &domain.Order{PatientID: patientID, OrderDate: now, Status: domain.OrderPlaced, CreatedBy: actor.UserID}
			if err := tx.InsertOrder(lockCtx, order); err != nil {
				return fmt.Errorf("insert order: %w", err)
			}
			for _, l := range lines {
				p, err := tx.GetProduct(lockCtx, l.ProductID)
				if err != nil {
					return err
				}
				item := domain.OrderItem{OrderID: order.ID, ProductID: p.ID, Quantity: l.Quantity, UnitPrice: p.Price}
				if err := tx.InsertOrderItem(lockCtx, &item); err != nil {
					return fmt.Errorf("insert order item: %w", err)
				}
				entry, err := inventory.Apply(lockCtx, tx, inventory.Entry{
					ProductID:   p.ID,
					Type:        domain.TxSale,
					Delta:       -l.Quantity,
					Reason:      fmt.Sprintf("order %d", order.ID),
					ProcessedBy: actor.UserID,
					At:          now,
				})
				if err != nil {
					return err
				}
				items = append(items, item)
				moved = append(moved, *entry)
			}
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}

	for _, e := range moved {
		metrics.RecordStockMovement(string(e.Type), e.Quantity)
	}
	s.log.Info().
		Int64("order_id", order.ID).
		Int64("patient_id", patientID).
		Int("lines", len(items)).
		Stringer("actor", actor).
		Msg("order placed")
	return order, items, nil
}

// OrderTotal sums the line totals of items.
func OrderTotal(items []domain.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// InvoiceOrder bills a placed order. An order is invoiced at most once.
func (s *Service) InvoiceOrder(ctx context.Context, actor domain.Actor, orderID int64) (*domain.Invoice, error) {
	if err := domain.RequireStaff(actor, "issue invoices"); err != nil {
		return nil, err
	}

	var inv *domain.Invoice
	err := s.store.Update(ctx, func(tx store.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case domain.OrderPlaced:
		case domain.OrderInvoiced:
			return fmt.Errorf("order %d is already invoiced: %w", order.ID, domain.ErrDuplicateRecord)
		default:
			return fmt.Errorf("order %d is %s: %w", order.ID, order.Status, domain.ErrInvalidState)
		}
		items, err := tx.ListOrderItems(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		id := order.ID
		inv = &domain.Invoice{
			PatientID:   order.PatientID,
			OrderID:     &id,
			TotalAmount: OrderTotal(items),
			IssuedAt:    time.Now().UTC(),
		}
		inv.Status = openingStatus(inv.TotalAmount)
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		order.Status = domain.OrderInvoiced
		return tx.UpdateOrder(ctx, *order)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("invoice_id", inv.ID).Int64("order_id", orderID).Str("total", inv.TotalAmount.StringFixed(2)).Msg("order invoiced")
	return inv, nil
}

// openingStatus settles a zero total at issue; no payment could ever settle it later.
func openingStatus(total decimal.Decimal) domain.InvoiceStatus {
	if total.IsPositive() {
		return domain.InvoiceUnpaid
	}
	return domain.InvoicePaid
}

// InvoiceAppointment bills the fee of a completed appointment.
func (s *Service) InvoiceAppointment(ctx context.Context, actor domain.Actor, appointmentID int64) (*domain.Invoice, error) {
	if err := domain.RequireStaff(actor, "issue invoices"); err != nil {
		return nil, err
	}

	var inv *domain.Invoice
	err := s.store.Update(ctx, func(tx store.Tx) error {
		appt, err := tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.Status != domain.StatusCompleted {
			return fmt.Errorf("appointment %d is %s, only completed visits are billed: %w", appt.ID, appt.Status, domain.ErrInvalidState)
		}
		id := appt.ID
		inv = &domain.Invoice{
			PatientID:     appt.PatientID,
			AppointmentID: &id,
			TotalAmount:   appt.Fee,
			IssuedAt:      time.Now().UTC(),
		}
		inv.Status = openingStatus(inv.TotalAmount)
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("invoice_id", inv.ID).Int64("appointment_id", appointmentID).Str("total", inv.TotalAmount.StringFixed(2)).Msg("appointment invoiced")
	return inv, nil
}

// RecordPayment settles part or all of an invoice's outstanding balance.
func (s *Service) RecordPayment(ctx context.Context, actor domain.Actor, invoiceID int64, amount decimal.Decimal, method domain.PaymentMethod) (*domain.Payment, *domain.Invoice, error) {
	if err := domain.RequireStaff(actor, "take payments"); err != nil {
		return nil, nil, err
	}
	if !amount.IsPositive() {
		return nil, nil, fmt.Errorf("payment of %s: %w", amount, domain.ErrInvalidQuantity)
	}
	if !method.Valid() {
		return nil, nil, domain.Invalid("method", fmt.Sprintf("unknown payment method %q", method))
	}

	var pay *domain.Payment
	var inv *domain.Invoice
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		inv, err = tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		due, err := outstanding(ctx, tx, inv)
		if err != nil {
			return err
		}
		if amount.GreaterThan(due) {
			return fmt.Errorf("payment of %s exceeds outstanding %s: %w", amount.StringFixed(2), due.StringFixed(2), domain.ErrInvalidQuantity)
		}
		pay = &domain.Payment{InvoiceID: inv.ID, Amount: amount, Method: method, PaidAt: time.Now().UTC(), ReceivedBy: actor.UserID}
		if err := tx.InsertPayment(ctx, pay); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if amount.Equal(due) {
			inv.Status = domain.InvoicePaid
		} else {
			inv.Status = domain.InvoicePartiallyPaid
		}
		return tx.UpdateInvoice(ctx, *inv)
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Int64("invoice_id", inv.ID).
		Int64("payment_id", pay.ID).
		Str("amount", amount.StringFixed(2)).
		Str("status", string(inv.Status)).
		Msg("payment recorded")
	return pay, inv, nil
}

// Outstanding returns what is still owed on an invoice.
func (s *Service) Outstanding(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	var due decimal.Decimal
	err := s.store.View(ctx, func(r store.Reader) error {
		inv, err := r.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		due, err = outstanding(ctx, r, inv)
		return err
	})
	return due, err
}

func outstanding(ctx context.Context, r store.Reader, inv *domain.Invoice) (decimal.Decimal, error) {
	payments, err := r.ListPayments(ctx, inv.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list payments: %w", err)
	}
	due := inv.TotalAmount
	for _, p := range payments {
		due = due.Sub(p.Amount)
	}
	return due, nil
}
