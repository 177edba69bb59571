// Package httpapi exposes the platform's REST surface. Slot administration
// routes are gated behind development mode or admin tokens.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/yigicoin/platform/internal/app"
	"github.com/yigicoin/platform/internal/app/domain/payment"
	"github.com/yigicoin/platform/internal/app/domain/points"
	"github.com/yigicoin/platform/internal/app/metrics"
	"github.com/yigicoin/platform/internal/apperr"
	"github.com/yigicoin/platform/pkg/logger"
)

// AdminConfig gates the slot administration routes.
type AdminConfig struct {
	DevMode bool
	Tokens  []string
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns a router exposing the REST API.
func NewHandler(application *app.Application, admin AdminConfig, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	adminOnly := adminGate(admin)

	slots := r.PathPrefix("/slots").Subrouter()
	slots.Use(adminOnly)
	slots.HandleFunc("/assign", h.assignSlot).Methods(http.MethodPost)
	slots.HandleFunc("/tree", h.slotTree).Methods(http.MethodGet)
	slots.HandleFunc("/reset-owners", h.resetOwners).Methods(http.MethodPost)
	slots.HandleFunc("/check-tree", h.checkTree).Methods(http.MethodGet)
	slots.HandleFunc("/expropriate", h.expropriate).Methods(http.MethodPost)
	slots.HandleFunc("/transfers", h.transfers).Methods(http.MethodGet)

	sponsors := r.PathPrefix("/sponsors").Subrouter()
	sponsors.Use(adminOnly)
	sponsors.HandleFunc("/preview", h.sponsorPreview).Methods(http.MethodGet)
	sponsors.HandleFunc("/resolve", h.sponsorResolve).Methods(http.MethodGet)

	r.HandleFunc("/users", h.createUser).Methods(http.MethodPost)
	r.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", h.getUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/points", h.pointsSummary).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/points/credit", h.creditPoints).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/points/debit", h.debitPoints).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/points/ad-claim", h.claimAdReward).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/sanctions", h.listSanctions).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/payments", h.listPayments).Methods(http.MethodGet)

	r.HandleFunc("/sanctions/{id}/recover", h.recoverSanction).Methods(http.MethodPost)
	r.HandleFunc("/sanctions/{id}/waive", h.waiveSanction).Methods(http.MethodPost)

	r.HandleFunc("/payments", h.recordPayment).Methods(http.MethodPost)
	r.HandleFunc("/payments/{id}/settle", h.settlePayment).Methods(http.MethodPost)
	r.HandleFunc("/payments/{id}/refund", h.refundPayment).Methods(http.MethodPost)

	r.HandleFunc("/raffles", h.createRound).Methods(http.MethodPost)
	r.HandleFunc("/raffles", h.listRounds).Methods(http.MethodGet)
	r.HandleFunc("/raffles/{id}/tickets", h.buyTicket).Methods(http.MethodPost)
	r.HandleFunc("/raffles/{id}/tickets", h.listTickets).Methods(http.MethodGet)
	r.HandleFunc("/raffles/{id}/close", h.closeRound).Methods(http.MethodPost)
	r.HandleFunc("/raffles/{id}/draw", h.recordDraw).Methods(http.MethodPost)

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- slots -------------------------------------------------------------------

func (h *handler) assignSlot(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email     string `json:"email"`
		SlotLabel string `json:"slotLabel"`
		// snake_case alias for slotLabel.
		SlotLabelAlt string `json:"slot_label"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	label := payload.SlotLabel
	if label == "" {
		label = payload.SlotLabelAlt
	}

	assigned, err := h.app.Slots.Assign(r.Context(), payload.Email, label)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assigned)
}

func (h *handler) slotTree(w http.ResponseWriter, r *http.Request) {
	maxLevel := -1
	raw := r.URL.Query().Get("maxLevel")
	if raw == "" {
		raw = r.URL.Query().Get("max_level")
	}
	if raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid maxLevel %q", raw))
			return
		}
		maxLevel = parsed
	}

	nodes, err := h.app.Slots.TreeView(r.Context(), maxLevel)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (h *handler) resetOwners(w http.ResponseWriter, r *http.Request) {
	reset, err := h.app.Slots.ResetOwners(r.Context())
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reset": reset})
}

func (h *handler) checkTree(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Slots.CheckTree(r.Context())
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) expropriate(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("email is required"))
		return
	}

	start := time.Now()
	result, err := h.app.Expropriation.Expropriate(r.Context(), email)
	metrics.RecordExpropriation(int(result.Case), time.Since(start), err == nil)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) transfers(w http.ResponseWriter, r *http.Request) {
	logs, err := h.app.Slots.Transfers(r.Context(), r.URL.Query().Get("slot_id"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// --- sponsors ----------------------------------------------------------------

func (h *handler) sponsorPreview(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("email is required"))
		return
	}

	results, err := h.app.Sponsors.Preview(r.Context(), email)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *handler) sponsorResolve(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	tier := r.URL.Query().Get("tier")
	if email == "" || tier == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("email and tier are required"))
		return
	}

	res, err := h.app.Sponsors.Resolve(r.Context(), email, tier)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	metrics.RecordSponsorResolution(string(res.Tier), string(res.ReceiverType))
	writeJSON(w, http.StatusOK, res)
}

// --- users and points --------------------------------------------------------

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Users.Register(r.Context(), payload.Email, payload.Username)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	all, err := h.app.Users.List(r.Context())
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) pointsSummary(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	balance, err := h.app.Points.Balance(r.Context(), userID)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	history, err := h.app.Points.History(r.Context(), userID)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance": balance,
		"ledger":  history,
	})
}

func (h *handler) creditPoints(w http.ResponseWriter, r *http.Request) {
	h.applyPoints(w, r, h.app.Points.Credit)
}

func (h *handler) debitPoints(w http.ResponseWriter, r *http.Request) {
	h.applyPoints(w, r, h.app.Points.Debit)
}

func (h *handler) applyPoints(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, int64, string) (points.LedgerEntry, error)) {
	var payload struct {
		Amount    int64  `json:"amount"`
		Reference string `json:"reference"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Amount <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("amount must be positive, got %d", payload.Amount))
		return
	}

	entry, err := apply(r.Context(), mux.Vars(r)["id"], payload.Amount, payload.Reference)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *handler) claimAdReward(w http.ResponseWriter, r *http.Request) {
	entry, err := h.app.Points.ClaimAdReward(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// --- sanctions ---------------------------------------------------------------

func (h *handler) listSanctions(w http.ResponseWriter, r *http.Request) {
	all, err := h.app.Sanctions.List(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handler) recoverSanction(w http.ResponseWriter, r *http.Request) {
	sanc, err := h.app.Sanctions.Recover(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sanc)
}

func (h *handler) waiveSanction(w http.ResponseWriter, r *http.Request) {
	sanc, err := h.app.Sanctions.Waive(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sanc)
}

// --- payments ----------------------------------------------------------------

func (h *handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email       string `json:"email"`
		Tier        string `json:"tier"`
		Provider    string `json:"provider"`
		ProviderRef string `json:"provider_ref"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p, err := h.app.Payments.Record(r.Context(), payload.Email, payload.Tier, payment.Provider(payload.Provider), payload.ProviderRef)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) settlePayment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProviderRef string `json:"provider_ref"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p, err := h.app.Payments.Settle(r.Context(), mux.Vars(r)["id"], payload.ProviderRef)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) refundPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Payments.Refund(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) listPayments(w http.ResponseWriter, r *http.Request) {
	all, err := h.app.Payments.List(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// --- raffles -----------------------------------------------------------------

func (h *handler) createRound(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name           string    `json:"name"`
		TicketPricePts int64     `json:"ticket_price_pts"`
		OpensAt        time.Time `json:"opens_at"`
		ClosesAt       time.Time `json:"closes_at"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	round, err := h.app.Raffles.CreateRound(r.Context(), payload.Name, payload.TicketPricePts, payload.OpensAt, payload.ClosesAt)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

func (h *handler) listRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.app.Raffles.ListRounds(r.Context())
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (h *handler) buyTicket(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ticket, err := h.app.Raffles.BuyTicket(r.Context(), mux.Vars(r)["id"], payload.UserID)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	metrics.RecordRaffleTicket()
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *handler) listTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.app.Raffles.ListTickets(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *handler) closeRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.app.Raffles.CloseRound(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *handler) recordDraw(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		WinningTicketID string `json:"winning_ticket_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	round, err := h.app.Raffles.RecordDrawResult(r.Context(), mux.Vars(r)["id"], payload.WinningTicketID)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// --- helpers -----------------------------------------------------------------

// writeAppError maps coded application errors onto HTTP statuses. Errors
// without a code are treated as infrastructure failures and logged.
func (h *handler) writeAppError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	switch {
	case code == "":
		h.log.WithError(err).Error("internal error")
		writeFailure(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	case code == apperr.CodeUserNotFound:
		writeFailure(w, http.StatusNotFound, code, err.Error())
	default:
		writeFailure(w, http.StatusBadRequest, code, err.Error())
	}
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"ok":      false,
		"code":    code,
		"message": message,
	})
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeFailure(w, status, "BAD_REQUEST", err.Error())
}
