// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yigicoin/platform/internal/app/domain/payment"
	"github.com/yigicoin/platform/internal/app/domain/points"
	"github.com/yigicoin/platform/internal/app/domain/raffle"
	"github.com/yigicoin/platform/internal/app/domain/sanction"
	"github.com/yigicoin/platform/internal/app/domain/slot"
	"github.com/yigicoin/platform/internal/app/domain/sponsor"
	"github.com/yigicoin/platform/internal/app/domain/user"
	"github.com/yigicoin/platform/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.SlotStore = (*Store)(nil)
var _ storage.SanctionStore = (*Store)(nil)
var _ storage.PointsStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)
var _ storage.RaffleStore = (*Store)(nil)
var _ storage.AdClaimStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// querier abstracts *sql.DB and *sql.Tx so reads and writes share one code
// path inside and outside transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return storage.ErrAlreadyExists
	}
	return err
}

// --- UserStore ---------------------------------------------------------------

const userColumns = `id, email, username, rank, points, counter_expires_at, created_at, updated_at`

func scanUser(row rowScanner) (user.User, error) {
	var (
		u       user.User
		rank    string
		expires sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &rank, &u.Points, &expires, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	u.Rank = user.Rank(rank)
	if expires.Valid {
		t := expires.Time
		u.CounterExpiresAt = &t
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Rank == "" {
		u.Rank = user.RankRegistro
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, username, rank, points, counter_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Email, u.Username, string(u.Rank), u.Points, u.CounterExpiresAt, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = $2, rank = $3, points = $4, counter_expires_at = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Username, string(u.Rank), u.Points, u.CounterExpiresAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, q querier, id string) (user.User, error) {
	return scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// --- SlotStore ---------------------------------------------------------------

const slotColumns = `id, label, level, position, parent_id, owner_type, owner_user_id, version, created_at, updated_at`

func scanSlot(row rowScanner) (slot.Slot, error) {
	var (
		sl        slot.Slot
		label     sql.NullString
		parentID  sql.NullString
		ownerID   sql.NullString
		ownerType string
	)
	err := row.Scan(&sl.ID, &label, &sl.Level, &sl.Position, &parentID, &ownerType, &ownerID, &sl.Version, &sl.CreatedAt, &sl.UpdatedAt)
	if err != nil {
		return slot.Slot{}, mapErr(err)
	}
	sl.Label = label.String
	sl.OwnerType = slot.OwnerType(ownerType)
	if parentID.Valid {
		v := parentID.String
		sl.ParentID = &v
	}
	if ownerID.Valid {
		v := ownerID.String
		sl.OwnerUserID = &v
	}
	return sl, nil
}

func querySlots(ctx context.Context, q querier, query string, args ...any) ([]slot.Slot, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []slot.Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sl)
	}
	return result, rows.Err()
}

func (s *Store) CreateSlot(ctx context.Context, sl slot.Slot) (slot.Slot, error) {
	if sl.ID == "" {
		sl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sl.Version = 1
	sl.CreatedAt = now
	sl.UpdatedAt = now

	var label any
	if sl.Label != "" {
		label = sl.Label
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slots (id, label, level, position, parent_id, owner_type, owner_user_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, sl.ID, label, sl.Level, sl.Position, sl.ParentID, string(sl.OwnerType), sl.OwnerUserID, sl.Version, sl.CreatedAt, sl.UpdatedAt)
	if err != nil {
		return slot.Slot{}, mapErr(err)
	}
	return sl, nil
}

func (s *Store) GetSlot(ctx context.Context, id string) (slot.Slot, error) {
	return getSlot(ctx, s.db, id)
}

func getSlot(ctx context.Context, q querier, id string) (slot.Slot, error) {
	return scanSlot(q.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id))
}

func (s *Store) GetSlotByLabel(ctx context.Context, label string) (slot.Slot, error) {
	return getSlotByLabel(ctx, s.db, label)
}

func getSlotByLabel(ctx context.Context, q querier, label string) (slot.Slot, error) {
	return scanSlot(q.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE label = $1`, label))
}

func (s *Store) ListSlots(ctx context.Context) ([]slot.Slot, error) {
	return querySlots(ctx, s.db, `SELECT `+slotColumns+` FROM slots ORDER BY level, position`)
}

func (s *Store) ListChildren(ctx context.Context, parentID string) ([]slot.Slot, error) {
	return listChildren(ctx, s.db, parentID)
}

func listChildren(ctx context.Context, q querier, parentID string) ([]slot.Slot, error) {
	return querySlots(ctx, q, `SELECT `+slotColumns+` FROM slots WHERE parent_id = $1 ORDER BY position`, parentID)
}

func (s *Store) FindRoot(ctx context.Context) (slot.Slot, error) {
	return findRoot(ctx, s.db)
}

func findRoot(ctx context.Context, q querier) (slot.Slot, error) {
	return scanSlot(q.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE parent_id IS NULL ORDER BY position LIMIT 1`))
}

func (s *Store) FindOwnedSlot(ctx context.Context, userID string) (slot.Slot, error) {
	return findOwnedSlot(ctx, s.db, userID)
}

func findOwnedSlot(ctx context.Context, q querier, userID string) (slot.Slot, error) {
	return scanSlot(q.QueryRowContext(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE owner_type = 'USER' AND owner_user_id = $1
		ORDER BY level, position
		LIMIT 1
	`, userID))
}

func (s *Store) UpdateSlotOwner(ctx context.Context, slotID string, expectVersion int64, ownerType slot.OwnerType, ownerUserID *string) (slot.Slot, error) {
	return updateSlotOwner(ctx, s.db, slotID, expectVersion, ownerType, ownerUserID)
}

func updateSlotOwner(ctx context.Context, q querier, slotID string, expectVersion int64, ownerType slot.OwnerType, ownerUserID *string) (slot.Slot, error) {
	row := q.QueryRowContext(ctx, `
		UPDATE slots
		SET owner_type = $2, owner_user_id = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $5
		RETURNING `+slotColumns+`
	`, slotID, string(ownerType), ownerUserID, time.Now().UTC(), expectVersion)

	sl, err := scanSlot(row)
	if err == nil {
		return sl, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return slot.Slot{}, err
	}
	// Distinguish a missing slot from a lost version race.
	if _, getErr := getSlot(ctx, q, slotID); getErr != nil {
		return slot.Slot{}, getErr
	}
	return slot.Slot{}, storage.ErrVersionConflict
}

func (s *Store) AppendTransfer(ctx context.Context, log slot.TransferLog) (slot.TransferLog, error) {
	return appendTransfer(ctx, s.db, log)
}

func appendTransfer(ctx context.Context, q querier, log slot.TransferLog) (slot.TransferLog, error) {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.CreatedAt = time.Now().UTC()

	_, err := q.ExecContext(ctx, `
		INSERT INTO slot_transfer_logs (id, slot_id, slot_label, from_owner_type, from_owner_user_id, to_owner_type, to_owner_user_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, log.ID, log.SlotID, log.SlotLabel, string(log.FromOwnerType), log.FromOwnerUserID, string(log.ToOwnerType), log.ToOwnerUserID, log.Reason, log.CreatedAt)
	if err != nil {
		return slot.TransferLog{}, mapErr(err)
	}
	return log, nil
}

func (s *Store) ListTransfers(ctx context.Context, slotID string) ([]slot.TransferLog, error) {
	query := `SELECT id, slot_id, slot_label, from_owner_type, from_owner_user_id, to_owner_type, to_owner_user_id, reason, created_at FROM slot_transfer_logs`
	args := []any{}
	if slotID != "" {
		query += ` WHERE slot_id = $1`
		args = append(args, slotID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []slot.TransferLog
	for rows.Next() {
		var (
			log      slot.TransferLog
			fromType string
			toType   string
			fromUser sql.NullString
			toUser   sql.NullString
		)
		if err := rows.Scan(&log.ID, &log.SlotID, &log.SlotLabel, &fromType, &fromUser, &toType, &toUser, &log.Reason, &log.CreatedAt); err != nil {
			return nil, err
		}
		log.FromOwnerType = slot.OwnerType(fromType)
		log.ToOwnerType = slot.OwnerType(toType)
		if fromUser.Valid {
			v := fromUser.String
			log.FromOwnerUserID = &v
		}
		if toUser.Valid {
			v := toUser.String
			log.ToOwnerUserID = &v
		}
		result = append(result, log)
	}
	return result, rows.Err()
}

// Transact runs fn inside one database transaction.
func (s *Store) Transact(ctx context.Context, fn func(tx storage.SlotTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&pgTx{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// pgTx exposes an open *sql.Tx as a SlotTx.
type pgTx struct {
	q *sql.Tx
}

var _ storage.SlotTx = (*pgTx)(nil)

func (t *pgTx) GetSlot(ctx context.Context, id string) (slot.Slot, error) {
	return getSlot(ctx, t.q, id)
}

func (t *pgTx) GetSlotByLabel(ctx context.Context, label string) (slot.Slot, error) {
	return getSlotByLabel(ctx, t.q, label)
}

func (t *pgTx) ListSlots(ctx context.Context) ([]slot.Slot, error) {
	return querySlots(ctx, t.q, `SELECT `+slotColumns+` FROM slots ORDER BY level, position`)
}

func (t *pgTx) ListChildren(ctx context.Context, parentID string) ([]slot.Slot, error) {
	return listChildren(ctx, t.q, parentID)
}

func (t *pgTx) FindRoot(ctx context.Context) (slot.Slot, error) {
	return findRoot(ctx, t.q)
}

func (t *pgTx) FindOwnedSlot(ctx context.Context, userID string) (slot.Slot, error) {
	return findOwnedSlot(ctx, t.q, userID)
}

func (t *pgTx) UpdateSlotOwner(ctx context.Context, slotID string, expectVersion int64, ownerType slot.OwnerType, ownerUserID *string) (slot.Slot, error) {
	return updateSlotOwner(ctx, t.q, slotID, expectVersion, ownerType, ownerUserID)
}

func (t *pgTx) AppendTransfer(ctx context.Context, log slot.TransferLog) (slot.TransferLog, error) {
	return appendTransfer(ctx, t.q, log)
}

func (t *pgTx) GetUser(ctx context.Context, id string) (user.User, error) {
	return getUser(ctx, t.q, id)
}

func (t *pgTx) UpdateUserCounter(ctx context.Context, userID string, expiresAt time.Time) (user.User, error) {
	return scanUser(t.q.QueryRowContext(ctx, `
		UPDATE users
		SET counter_expires_at = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+userColumns+`
	`, userID, expiresAt.UTC(), time.Now().UTC()))
}

func (t *pgTx) CreateSanction(ctx context.Context, sn sanction.AccountSanction) (sanction.AccountSanction, error) {
	return createSanction(ctx, t.q, sn)
}

// --- SanctionStore -----------------------------------------------------------

const sanctionColumns = `id, user_id, slot_id, rank_at_expropriation, fine_usd, grace_hours, deadline_at, status, reason, created_at, updated_at`

func scanSanction(row rowScanner) (sanction.AccountSanction, error) {
	var (
		sn     sanction.AccountSanction
		rank   string
		status string
	)
	err := row.Scan(&sn.ID, &sn.UserID, &sn.SlotID, &rank, &sn.FineUSD, &sn.GraceHours, &sn.DeadlineAt, &status, &sn.Reason, &sn.CreatedAt, &sn.UpdatedAt)
	if err != nil {
		return sanction.AccountSanction{}, mapErr(err)
	}
	sn.RankAtExpropriation = user.Rank(rank)
	sn.Status = sanction.Status(status)
	return sn, nil
}

func (s *Store) CreateSanction(ctx context.Context, sn sanction.AccountSanction) (sanction.AccountSanction, error) {
	return createSanction(ctx, s.db, sn)
}

func createSanction(ctx context.Context, q querier, sn sanction.AccountSanction) (sanction.AccountSanction, error) {
	if sn.ID == "" {
		sn.ID = uuid.NewString()
	}
	if sn.Status == "" {
		sn.Status = sanction.StatusPending
	}
	now := time.Now().UTC()
	sn.CreatedAt = now
	sn.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO account_sanctions (id, user_id, slot_id, rank_at_expropriation, fine_usd, grace_hours, deadline_at, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, sn.ID, sn.UserID, sn.SlotID, string(sn.RankAtExpropriation), sn.FineUSD, sn.GraceHours, sn.DeadlineAt, string(sn.Status), sn.Reason, sn.CreatedAt, sn.UpdatedAt)
	if err != nil {
		return sanction.AccountSanction{}, mapErr(err)
	}
	return sn, nil
}

func (s *Store) UpdateSanction(ctx context.Context, sn sanction.AccountSanction) (sanction.AccountSanction, error) {
	sn.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE account_sanctions
		SET status = $2, reason = $3, updated_at = $4
		WHERE id = $1
	`, sn.ID, string(sn.Status), sn.Reason, sn.UpdatedAt)
	if err != nil {
		return sanction.AccountSanction{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sanction.AccountSanction{}, storage.ErrNotFound
	}
	return sn, nil
}

func (s *Store) GetSanction(ctx context.Context, id string) (sanction.AccountSanction, error) {
	return scanSanction(s.db.QueryRowContext(ctx, `SELECT `+sanctionColumns+` FROM account_sanctions WHERE id = $1`, id))
}

func (s *Store) ListSanctions(ctx context.Context, userID string) ([]sanction.AccountSanction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sanctionColumns+` FROM account_sanctions WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []sanction.AccountSanction
	for rows.Next() {
		sn, err := scanSanction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sn)
	}
	return result, rows.Err()
}

func (s *Store) ListDueSanctions(ctx context.Context, now time.Time) ([]sanction.AccountSanction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sanctionColumns+` FROM account_sanctions
		WHERE status = 'PENDING' AND deadline_at <= $1
		ORDER BY deadline_at
	`, now.UTC())
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []sanction.AccountSanction
	for rows.Next() {
		sn, err := scanSanction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sn)
	}
	return result, rows.Err()
}

// --- PointsStore -------------------------------------------------------------

func (s *Store) AppendLedger(ctx context.Context, entry points.LedgerEntry) (points.LedgerEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO points_ledger (id, user_id, kind, amount, balance, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.UserID, string(entry.Kind), entry.Amount, entry.Balance, entry.Reference, entry.CreatedAt)
	if err != nil {
		return points.LedgerEntry{}, mapErr(err)
	}
	return entry, nil
}

func (s *Store) ListLedger(ctx context.Context, userID string) ([]points.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, amount, balance, reference, created_at
		FROM points_ledger WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []points.LedgerEntry
	for rows.Next() {
		var (
			entry points.LedgerEntry
			kind  string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &kind, &entry.Amount, &entry.Balance, &entry.Reference, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Kind = points.Kind(kind)
		result = append(result, entry)
	}
	return result, rows.Err()
}

// --- PaymentStore ------------------------------------------------------------

const paymentColumns = `id, user_id, tier, amount_usd, provider, provider_ref, receiver_type, receiver_slot_id, receiver_user_id, status, created_at, updated_at`

func scanPayment(row rowScanner) (payment.Payment, error) {
	var (
		p            payment.Payment
		tier         string
		provider     string
		receiverType string
		receiverSlot sql.NullString
		receiverUser sql.NullString
		status       string
	)
	err := row.Scan(&p.ID, &p.UserID, &tier, &p.AmountUSD, &provider, &p.ProviderRef, &receiverType, &receiverSlot, &receiverUser, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return payment.Payment{}, mapErr(err)
	}
	p.Tier = sponsor.Tier(tier)
	p.Provider = payment.Provider(provider)
	p.ReceiverType = sponsor.ReceiverType(receiverType)
	p.Status = payment.Status(status)
	p.ReceiverSlotID = receiverSlot.String
	if receiverUser.Valid {
		v := receiverUser.String
		p.ReceiverUserID = &v
	}
	return p, nil
}

func (s *Store) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = payment.StatusRecorded
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	var receiverSlot any
	if p.ReceiverSlotID != "" {
		receiverSlot = p.ReceiverSlotID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, tier, amount_usd, provider, provider_ref, receiver_type, receiver_slot_id, receiver_user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.ID, p.UserID, string(p.Tier), p.AmountUSD, string(p.Provider), p.ProviderRef, string(p.ReceiverType), receiverSlot, p.ReceiverUserID, string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return payment.Payment{}, mapErr(err)
	}
	return p, nil
}

func (s *Store) UpdatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	p.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET provider_ref = $2, status = $3, updated_at = $4
		WHERE id = $1
	`, p.ID, p.ProviderRef, string(p.Status), p.UpdatedAt)
	if err != nil {
		return payment.Payment{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return payment.Payment{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (payment.Payment, error) {
	return scanPayment(s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

func (s *Store) ListPayments(ctx context.Context, userID string) ([]payment.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// --- RaffleStore -------------------------------------------------------------

const roundColumns = `id, name, ticket_price_pts, prize_pool_pts, ticket_count, status, winning_ticket_id, winner_user_id, opens_at, closes_at, drawn_at, created_at, updated_at`

func scanRound(row rowScanner) (raffle.Round, error) {
	var (
		r       raffle.Round
		status  string
		winTkt  sql.NullString
		winUser sql.NullString
		drawnAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Name, &r.TicketPricePts, &r.PrizePoolPts, &r.TicketCount, &status, &winTkt, &winUser, &r.OpensAt, &r.ClosesAt, &drawnAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return raffle.Round{}, mapErr(err)
	}
	r.Status = raffle.RoundStatus(status)
	if winTkt.Valid {
		v := winTkt.String
		r.WinningTicketID = &v
	}
	if winUser.Valid {
		v := winUser.String
		r.WinnerUserID = &v
	}
	if drawnAt.Valid {
		t := drawnAt.Time
		r.DrawnAt = &t
	}
	return r, nil
}

func (s *Store) CreateRound(ctx context.Context, r raffle.Round) (raffle.Round, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = raffle.RoundActive
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO raffle_rounds (id, name, ticket_price_pts, prize_pool_pts, ticket_count, status, winning_ticket_id, winner_user_id, opens_at, closes_at, drawn_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, r.ID, r.Name, r.TicketPricePts, r.PrizePoolPts, r.TicketCount, string(r.Status), r.WinningTicketID, r.WinnerUserID, r.OpensAt, r.ClosesAt, r.DrawnAt, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return raffle.Round{}, mapErr(err)
	}
	return r, nil
}

func (s *Store) UpdateRound(ctx context.Context, r raffle.Round) (raffle.Round, error) {
	r.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE raffle_rounds
		SET prize_pool_pts = $2, ticket_count = $3, status = $4, winning_ticket_id = $5, winner_user_id = $6, drawn_at = $7, updated_at = $8
		WHERE id = $1
	`, r.ID, r.PrizePoolPts, r.TicketCount, string(r.Status), r.WinningTicketID, r.WinnerUserID, r.DrawnAt, r.UpdatedAt)
	if err != nil {
		return raffle.Round{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return raffle.Round{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) GetRound(ctx context.Context, id string) (raffle.Round, error) {
	return scanRound(s.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM raffle_rounds WHERE id = $1`, id))
}

func (s *Store) ListRounds(ctx context.Context) ([]raffle.Round, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+roundColumns+` FROM raffle_rounds ORDER BY created_at`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []raffle.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) CreateTicket(ctx context.Context, t raffle.Ticket) (raffle.Ticket, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.PurchasedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO raffle_tickets (id, round_id, user_id, number, purchased_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.RoundID, t.UserID, t.Number, t.PurchasedAt)
	if err != nil {
		return raffle.Ticket{}, mapErr(err)
	}
	return t, nil
}

func (s *Store) ListTickets(ctx context.Context, roundID string) ([]raffle.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, round_id, user_id, number, purchased_at
		FROM raffle_tickets WHERE round_id = $1 ORDER BY number
	`, roundID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []raffle.Ticket
	for rows.Next() {
		var t raffle.Ticket
		if err := rows.Scan(&t.ID, &t.RoundID, &t.UserID, &t.Number, &t.PurchasedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// --- AdClaimStore ------------------------------------------------------------

func (s *Store) RecordClaim(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO ad_claims (user_id, claimed_at) VALUES ($1, $2)`, userID, at.UTC())
	return mapErr(err)
}

func (s *Store) ClaimsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM ad_claims WHERE user_id = $1 AND claimed_at >= $2
	`, userID, since.UTC()).Scan(&count)
	return count, mapErr(err)
}
