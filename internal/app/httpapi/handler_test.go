package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	app "github.com/yigicoin/platform/internal/app"
	"github.com/yigicoin/platform/pkg/logger"
)

func newTestHandler(t *testing.T, admin AdminConfig) (*app.Application, http.Handler) {
	t.Helper()

	application, err := app.New(app.Stores{}, app.Options{}, logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	if err := application.Slots.Seed(context.Background()); err != nil {
		t.Fatalf("seed tree: %v", err)
	}
	return application, NewHandler(application, admin, logger.NewDefault("test"))
}

func doJSON(t *testing.T, h http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, h http.Handler, email string) string {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/users", map[string]string{
		"email":    email,
		"username": email,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"ID"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("register %s: empty id in %s", email, rec.Body.String())
	}
	return created.ID
}

func TestHealth(t *testing.T) {
	_, h := newTestHandler(t, AdminConfig{DevMode: true})

	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAssignSlotAndTree(t *testing.T) {
	_, h := newTestHandler(t, AdminConfig{DevMode: true})
	registerUser(t, h, "ana@example.com")

	rec := doJSON(t, h, http.MethodPost, "/slots/assign", map[string]string{
		"email":      "ana@example.com",
		"slot_label": "A",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/slots/tree?max_level=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tree: status %d", rec.Code)
	}
	var nodes []struct {
		Slot struct {
			Label string
		} `json:"slot"`
		Owner *struct {
			Email string
		} `json:"owner"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &nodes); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("tree levels 0..1: got %d nodes", len(nodes))
	}
	found := false
	for _, n := range nodes {
		if n.Slot.Label == "A" && n.Owner != nil && n.Owner.Email == "ana@example.com" {
			found = true
		}
	}
	if !found {
		t.Fatalf("assigned owner missing from tree view: %s", rec.Body.String())
	}
}

func TestAssignSlotCamelCaseBody(t *testing.T) {
	_, h := newTestHandler(t, AdminConfig{DevMode: true})
	registerUser(t, h, "ana@example.com")

	rec := doJSON(t, h, http.MethodPost, "/slots/assign", map[string]string{
		"email":     "ana@example.com",
		"slotLabel": "B",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: status %d body %s", rec.Code, rec.Body.String())
	}
	var assigned struct {
		Label string
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &assigned); err != nil {
		t.Fatalf("decode slot: %v", err)
	}
	if assigned.Label != "B" {
		t.Fatalf("assigned label = %q", assigned.Label)
	}
}

func TestTreeMaxLevelCamelCase(t *testing.T) {
	_, h := newTestHandler(t, AdminConfig{DevMode: true})

	rec := doJSON(t, h, http.MethodGet, "/slots/tree?maxLevel=0", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tree: status %d", rec.Code)
	}
	var nodes []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &nodes); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("maxLevel=0: got %d nodes, want only the root", len(nodes))
	}
}

func TestAssignSlotUnknownUser(t *testing.T) {
	_, h := newTestHandler(t, AdminConfig{DevMode: true})

	rec := doJSON(t, h, http.MethodPost, "/slots/assign", map[string]string{
		"email":      "nobody@example.com",
		"slot_label": "A",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var failure struct {
		OK   bool   `json:"ok"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &failure); err != nil {
		t.Fatalf("decode failure: %v", err)
	}
	if failure.OK || failure.Code != "USER_NOT_FOUND" {
		t.Fatalf("failure body = %+v", failure)
	}
}

func TestAssignRootRejected(t *testing.T) {
	_, h := newTestHandler(t, AdminConfig{DevMode: true})
	registerUser(t, h, "ana@example.com")

	rec := doJSON(t, h, http.MethodPost, "/slots/assign", map[string]string{
		"email":      "ana@example.com",
		"slot_label": "P_ROOT",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	var failure struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &failure); err != nil {
		t.Fatalf("decode failure: %v", err)
	}
	if failure.Code != "CANNOT_ASSIGN_ROOT" {
		t.Fatalf("code = %q", failure.Code)
	}
}

func TestExpropriateBothChildrenOwned(t *testing.T) {
	_, h := newTestHandler(t, AdminConfig{DevMode: true})

	// A's children are C and D; with both user-owned the platform keeps A.
	for _, assign := range []struct{ email, label string }{
		{"loser@example.com", "A"},
		{"c@example.com", "C"},
		{"d@example.com", "D"},
	} {
		registerUser(t, h, assign.email)
		rec := doJSON(t, h, http.MethodPost, "/slots/assign", map[string]string{
			"email":      assign.email,
			"slot_label": assign.label,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("assign %s: status %d body %s", assign.label, rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, h, http.MethodPost, "/slots/expropriate?email=loser@example.com", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expropriate: status %d body %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Case      int    `json:"case"`
		SlotLabel string `json:"slot_label"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Case != 1 || result.SlotLabel != "A" {
		t.Fatalf("result = %+v", result)
	}
}

func TestAdminGate(t *testing.T) {
	_, h := newTestHandler(t, AdminConfig{Tokens: []string{"sekrit"}})

	req := httptest.NewRequest(http.MethodGet, "/slots/tree", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("no token: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/slots/tree", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with token: status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/slots/tree", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("bad token: status = %d, want 403", rec.Code)
	}
}

func TestPointsCreditAndSummary(t *testing.T) {
	_, h := newTestHandler(t, AdminConfig{DevMode: true})
	id := registerUser(t, h, "ana@example.com")

	rec := doJSON(t, h, http.MethodPost, "/users/"+id+"/points/credit", map[string]interface{}{
		"amount":    int64(25),
		"reference": "promo",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("credit: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/users/"+id+"/points", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: status %d", rec.Code)
	}
	var summary struct {
		Balance int64             `json:"balance"`
		Ledger  []json.RawMessage `json:"ledger"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Balance != 25 || len(summary.Ledger) != 1 {
		t.Fatalf("summary = balance %d, %d entries", summary.Balance, len(summary.Ledger))
	}
}

func TestDebitInsufficientPoints(t *testing.T) {
	_, h := newTestHandler(t, AdminConfig{DevMode: true})
	id := registerUser(t, h, "ana@example.com")

	rec := doJSON(t, h, http.MethodPost, "/users/"+id+"/points/debit", map[string]interface{}{
		"amount":    int64(5),
		"reference": "spend",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	var failure struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &failure); err != nil {
		t.Fatalf("decode failure: %v", err)
	}
	if failure.Code != "INSUFFICIENT_POINTS" {
		t.Fatalf("code = %q", failure.Code)
	}
}

func TestNegativeDebitRejected(t *testing.T) {
	_, h := newTestHandler(t, AdminConfig{DevMode: true})
	id := registerUser(t, h, "ana@example.com")

	rec := doJSON(t, h, http.MethodPost, "/users/"+id+"/points/debit", map[string]interface{}{
		"amount":    int64(-50),
		"reference": "exploit",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/users/"+id+"/points", nil)
	var summary struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Balance != 0 {
		t.Fatalf("negative debit changed the balance: %d", summary.Balance)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, h := newTestHandler(t, AdminConfig{DevMode: true})

	rec := doJSON(t, h, http.MethodPost, "/users", map[string]string{
		"email":    "ana@example.com",
		"username": "ana",
		"surprise": "field",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	limited := NewRateLimiter(1, 2, logger.NewDefault("test")).Handler(handler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	if fmt.Sprint(codes) != fmt.Sprint(want) {
		t.Fatalf("codes = %v, want %v", codes, want)
	}

	// A different client gets its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.2:4000"
	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client: status = %d", rec.Code)
	}
}
