package api

import (
	"net/http"

	"github.com/hackgods/clinic-ops/internal/billing"
	"github.com/hackgods/clinic-ops/internal/domain"
	"github.com/hackgods/clinic-ops/internal/inventory"
	"github.com/hackgods/clinic-ops/internal/query"
)

func listProductsHandler(q *query.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := q.ProductListing(r.Context(), r.URL.Query().Get("in_stock") == "true")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		resp := make([]ProductResponse, 0, len(products))
		for _, p := range products {
			resp = append(resp, toProduct(p))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createProductHandler(svc *inventory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProductRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		p, err := svc.CreateProduct(r.Context(), actorFrom(r.Context()), domain.Product{
			Manufacturer:    req.Manufacturer,
			Model:           req.Model,
			Features:        req.Features,
			Price:           req.Price,
			QuantityInStock: req.QuantityInStock,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toProduct(*p))
	}
}

func setPriceHandler(svc *inventory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		var req PriceRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		p, err := svc.SetPrice(r.Context(), actorFrom(r.Context()), id, req.Price)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toProduct(*p))
	}
}

// stockHandler decodes a StockRequest and hands it to move, which performs
// one of the ledger operations.
func stockHandler(move func(r *http.Request, actor domain.Actor, productID int64, req StockRequest) (int64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		var req StockRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		txID, err := move(r, actorFrom(r.Context()), id, req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, StockResponse{TransactionID: txID})
	}
}

func restockHandler(svc *inventory.Service) http.HandlerFunc {
	return stockHandler(func(r *http.Request, actor domain.Actor, id int64, req StockRequest) (int64, error) {
		return svc.AddStock(r.Context(), actor, id, req.Quantity, req.Reason)
	})
}

func removeStockHandler(svc *inventory.Service) http.HandlerFunc {
	return stockHandler(func(r *http.Request, actor domain.Actor, id int64, req StockRequest) (int64, error) {
		kind := domain.TxSale
		if req.Type != "" {
			kind = domain.TransactionType(req.Type)
		}
		return svc.RemoveStock(r.Context(), actor, id, req.Quantity, kind, req.Reason)
	})
}

func adjustStockHandler(svc *inventory.Service) http.HandlerFunc {
	return stockHandler(func(r *http.Request, actor domain.Actor, id int64, req StockRequest) (int64, error) {
		return svc.Adjust(r.Context(), actor, id, req.Quantity, req.Reason)
	})
}

func ledgerHandler(svc *inventory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		entries, err := svc.History(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		resp := make([]LedgerEntryResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, toLedgerEntry(e))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func verifyStockHandler(svc *inventory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		rec, err := svc.Verify(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ReconciliationResponse{
			ProductID:  rec.ProductID,
			Cached:     rec.Cached,
			Replayed:   rec.Replayed,
			Entries:    rec.Entries,
			Consistent: rec.Consistent,
		})
	}
}

func placeOrderHandler(svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OrderRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		lines := make([]billing.OrderLine, 0, len(req.Lines))
		for _, l := range req.Lines {
			lines = append(lines, billing.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
		}

		order, items, err := svc.PlaceOrder(r.Context(), actorFrom(r.Context()), req.PatientID, lines)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		resp := OrderResponse{
			ID:        order.ID,
			PatientID: order.PatientID,
			Status:    string(order.Status),
			OrderDate: order.OrderDate,
			Total:     billing.OrderTotal(items),
		}
		for _, it := range items {
			resp.Items = append(resp.Items, OrderItemResponse{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
				LineTotal: it.LineTotal(),
			})
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func invoiceOrderHandler(svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		inv, err := svc.InvoiceOrder(r.Context(), actorFrom(r.Context()), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toInvoice(*inv, inv.TotalAmount))
	}
}

func recordPaymentHandler(svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		var req PaymentRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		pay, inv, err := svc.RecordPayment(r.Context(), actorFrom(r.Context()), id, req.Amount, domain.PaymentMethod(req.Method))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		due, err := svc.Outstanding(r.Context(), inv.ID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, PaymentResponse{
			ID:      pay.ID,
			Amount:  pay.Amount,
			Method:  string(pay.Method),
			PaidAt:  pay.PaidAt,
			Invoice: toInvoice(*inv, due),
		})
	}
}

func outstandingHandler(svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		due, err := svc.Outstanding(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice_id": id, "outstanding": due})
	}
}
