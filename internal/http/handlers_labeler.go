package http

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/netzema/fintrack/internal/core"
	"github.com/netzema/fintrack/internal/events"
	"github.com/netzema/fintrack/internal/rules"
)

// labelerView is the data behind the labeling card: the next unknown
// transaction plus everything the form needs.
type labelerView struct {
	Tx           *txView
	Queue        int
	Categories   []string
	Flash        string
	FlashError   bool
	NeedsConfirm bool
	// form echo for the confirm round trip
	FormID       string
	FormCategory string
	FormPattern  string
	FormUnique   bool
}

type txView struct {
	ID           string
	Date         string
	Counterparty string
	Remittance   string
	Amount       string
	Negative     bool
}

func (s *Server) labelerData(r *http.Request, flash string, isErr bool) labelerView {
	ctx := r.Context()
	view := labelerView{Flash: flash, FlashError: isErr}

	next, err := s.store.NextUnclassified(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Next unclassified error", "error", err)
	} else if next != nil {
		view.Tx = &txView{
			ID:           next.ID,
			Date:         next.BookingDate.ISO(),
			Counterparty: next.Counterparty,
			Remittance:   next.Remittance,
			Amount:       formatEuros(next.Amount.Cents),
			Negative:     next.Amount.Cents < 0,
		}
	}

	if view.Queue, err = s.store.CountUnclassified(ctx); err != nil {
		slog.ErrorContext(ctx, "Unclassified count error", "error", err)
	}

	view.Categories = s.categoryOptions(ctx)

	return view
}

// categoryOptions merges the categories known to the store with the targets
// from the rule file, store order first.
func (s *Server) categoryOptions(ctx context.Context) []string {
	var out []string
	seen := make(map[string]bool)
	if cats, err := s.store.Categories(ctx); err == nil {
		for _, c := range cats {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	if base, err := rules.Load(s.rulesPath); err == nil {
		for _, c := range base.Categories() {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func (s *Server) handleLabeler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "labeler.html", s.labelerData(r, "", false))
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, r, "labeler_card.html", s.labelerData(r, "Invalid request format.", true))
		return
	}

	ctx := r.Context()
	id := sanitizeInput(r.Form.Get("id"))
	category := sanitizeInput(r.Form.Get("category"))
	if v := sanitizeInput(r.Form.Get("new_category")); v != "" {
		category = v
	}
	pattern := sanitizeInput(r.Form.Get("pattern"))
	unique := r.Form.Get("unique") == "1"
	confirm := r.Form.Get("confirm") == "1"

	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, r, "labeler_card.html", s.labelerData(r, "Missing transaction id.", true))
		return
	}
	if category == "" {
		// re-prompt, nothing stored
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "labeler_card.html", s.labelerData(r, "Pick a category or type a new one.", true))
		return
	}

	tx, err := s.store.Get(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Transaction lookup error", "error", err, "id", id)
		w.WriteHeader(http.StatusNotFound)
		s.render(w, r, "labeler_card.html", s.labelerData(r, "Transaction not found.", true))
		return
	}

	// derive and validate the rule first, but write the file only after the
	// label is stored, so a failed label leaves no orphan rule behind
	var pendingRules *rules.Base
	var rule rules.Rule
	if pattern != "" || unique {
		var ok bool
		if pendingRules, rule, ok = s.prepareRule(w, r, tx, category, pattern, unique, confirm); !ok {
			return
		}
	}

	if err := s.store.SetCategory(ctx, id, category); err != nil {
		slog.ErrorContext(ctx, "Set category error", "error", err, "id", id)
		w.WriteHeader(http.StatusInternalServerError)
		s.render(w, r, "labeler_card.html", s.labelerData(r, "Failed to save the label.", true))
		return
	}
	s.invalidateDashboard()
	s.httpLog.LogTransactionLabeled(ctx, id, tx.Amount.Cents, category, pattern)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewTransactionLabeled(id, category)); err != nil {
			slog.WarnContext(ctx, "Publish labeled event failed", "error", err, "id", id)
		}
	}

	if pendingRules != nil {
		if err := rules.Save(s.rulesPath, pendingRules); err != nil {
			slog.ErrorContext(ctx, "Save rules error", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			s.render(w, r, "labeler_card.html", s.labelerData(r,
				"Saved the label, but failed to write the rule file.", true))
			return
		}
		slog.InfoContext(ctx, "Rule appended",
			"pattern", rule.Match, "field", string(rule.Field), "category", category)
	}

	// a fresh rule may resolve other queued transactions right away
	if pattern != "" {
		if base, err := rules.Load(s.rulesPath); err == nil {
			if _, err := s.classifier.Apply(ctx, base, false); err != nil {
				slog.ErrorContext(ctx, "Reclassify after labeling failed", "error", err)
			}
		}
	}

	flash := "Labeled as " + template.HTMLEscapeString(category) + "."
	s.render(w, r, "labeler_card.html", s.labelerData(r, flash, false))
}

// prepareRule derives a rule for the labeled transaction and appends it to
// the in-memory rule set without saving. It reports whether the assign flow
// may continue; on a conflict still needing confirmation it has already
// written the response.
func (s *Server) prepareRule(w http.ResponseWriter, r *http.Request, tx core.Transaction, category, pattern string, unique, confirm bool) (*rules.Base, rules.Rule, bool) {
	ctx := r.Context()

	base, err := rules.Load(s.rulesPath)
	if err != nil {
		slog.ErrorContext(ctx, "Load rules error", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		s.render(w, r, "labeler_card.html", s.labelerData(r, "Failed to load the rule file.", true))
		return nil, rules.Rule{}, false
	}

	var rule rules.Rule
	if unique {
		rule = rules.DeriveUnique(tx.ID, category)
	} else {
		rule = rules.DeriveSubstring(pattern, category)
	}

	// an earlier rule that already claims this transaction keeps winning;
	// appending anyway needs an explicit confirmation
	if existing, ok := base.FirstMatch(tx); ok && existing.Category != category && !confirm {
		view := s.labelerData(r, "", false)
		view.NeedsConfirm = true
		view.FlashError = true
		view.Flash = "An existing rule (" + template.HTMLEscapeString(existing.Match) +
			" → " + template.HTMLEscapeString(existing.Category) +
			") already matches this transaction and takes priority. Append anyway?"
		view.FormID = tx.ID
		view.FormCategory = category
		view.FormPattern = pattern
		view.FormUnique = unique
		w.WriteHeader(http.StatusConflict)
		s.render(w, r, "labeler_card.html", view)
		return nil, rules.Rule{}, false
	}

	if err := base.Append(rule); err != nil {
		if errors.Is(err, rules.ErrDuplicatePattern) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.render(w, r, "labeler_card.html", s.labelerData(r,
				"A rule for this pattern already exists; edit the rule file to change it.", true))
			return nil, rules.Rule{}, false
		}
		slog.ErrorContext(ctx, "Append rule error", "error", err, "pattern", rule.Match)
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "labeler_card.html", s.labelerData(r, "Invalid rule: "+template.HTMLEscapeString(err.Error()), true))
		return nil, rules.Rule{}, false
	}

	return base, rule, true
}
