package http

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/netzema/fintrack/internal/core"
	"github.com/netzema/fintrack/internal/events"
)

// addForm echoes the submitted fields back into the form on an error.
type addForm struct {
	Date         string
	Amount       string
	Counterparty string
	Remittance   string
	Category     string
}

type addView struct {
	Counterparties []string
	Categories     []string
	Flash          string
	FlashError     bool
	Form           addForm
}

func (s *Server) addData(r *http.Request, form addForm, flash string, isErr bool) addView {
	ctx := r.Context()
	view := addView{Flash: flash, FlashError: isErr, Form: form}

	parties, err := s.store.Counterparties(ctx, 50)
	if err != nil {
		slog.ErrorContext(ctx, "Counterparty list error", "error", err)
	}
	view.Counterparties = parties
	view.Categories = s.categoryOptions(ctx)

	return view
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "add.html", s.addData(r, addForm{}, "", false))
}

// handleAddSave records a hand-entered transaction, typically a cash expense
// or a savings deposit the bank feed never sees.
func (s *Server) handleAddSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, r, "add.html", s.addData(r, addForm{}, "Invalid request format.", true))
		return
	}

	ctx := r.Context()
	form := addForm{
		Date:         sanitizeInput(r.Form.Get("date")),
		Amount:       sanitizeInput(r.Form.Get("amount")),
		Counterparty: sanitizeInput(r.Form.Get("counterparty")),
		Remittance:   sanitizeInput(r.Form.Get("remittance")),
		Category:     sanitizeInput(r.Form.Get("category")),
	}
	if v := sanitizeInput(r.Form.Get("new_category")); v != "" {
		form.Category = v
	}

	date, err := core.ParseDate(form.Date)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "add.html", s.addData(r, form, "Enter a date like 2024-03-05.", true))
		return
	}
	amount, err := core.ParseAmount(form.Amount)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "add.html", s.addData(r, form, "Enter an amount like -12,50.", true))
		return
	}
	if form.Counterparty == "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "add.html", s.addData(r, form, "Enter who the money went to or came from.", true))
		return
	}

	tx := core.Transaction{
		ID:           uuid.NewString(),
		BookingDate:  date,
		Amount:       amount,
		Currency:     "EUR",
		Counterparty: form.Counterparty,
		Remittance:   form.Remittance,
		Category:     form.Category,
		Source:       core.SourceManual,
	}
	if err := tx.Validate(); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "add.html", s.addData(r, form, "Invalid entry: "+template.HTMLEscapeString(err.Error()), true))
		return
	}

	inserted, err := s.store.Insert(ctx, tx)
	if err != nil {
		slog.ErrorContext(ctx, "Manual insert error", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		s.render(w, r, "add.html", s.addData(r, form, "Failed to save the entry.", true))
		return
	}
	if !inserted {
		w.WriteHeader(http.StatusConflict)
		s.render(w, r, "add.html", s.addData(r, form, "An identical entry already exists.", true))
		return
	}

	s.invalidateDashboard()
	slog.InfoContext(ctx, "Manual entry recorded",
		"id", tx.ID, "amount_cents", amount.Cents, "category", form.Category)

	if s.publisher != nil && form.Category != "" {
		if err := s.publisher.Publish(ctx, events.NewTransactionLabeled(tx.ID, form.Category)); err != nil {
			slog.WarnContext(ctx, "Publish labeled event failed", "error", err, "id", tx.ID)
		}
	}

	flash := "Recorded " + template.HTMLEscapeString(form.Counterparty) + "."
	s.render(w, r, "add.html", s.addData(r, addForm{}, flash, false))
}
