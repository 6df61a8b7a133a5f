package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"traderoom/internal/types"
)

// Service is the double-entry USD ledger. Every movement is a balanced pair
// of entries, and each entry carries a sha256 hash chained to the previous
// entry so tampering is detectable after the fact.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

func (s *Service) EnsureAccount(ctx context.Context, tx pgx.Tx, userID string, kind types.AccountKind) (string, error) {
	var id string
	err := tx.QueryRow(ctx, "select id from accounts where owner_type = 'user' and owner_user_id = $1 and kind = $2", userID, string(kind)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	err = tx.QueryRow(ctx, "insert into accounts (owner_type, owner_user_id, kind) values ('user', $1, $2) returning id", userID, string(kind)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) EnsureSystemAccount(ctx context.Context, tx pgx.Tx, kind types.AccountKind) (string, error) {
	var id string
	err := tx.QueryRow(ctx, "select id from accounts where owner_type = 'system' and owner_user_id is null and kind = $1", string(kind)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	err = tx.QueryRow(ctx, "insert into accounts (owner_type, owner_user_id, kind) values ('system', null, $1) returning id", string(kind)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) GetBalance(ctx context.Context, tx pgx.Tx, accountID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.QueryRow(ctx, "select coalesce(sum(amount), 0) from ledger_entries where account_id = $1", accountID).Scan(&sum)
	return sum, err
}

type Balance struct {
	Kind   types.AccountKind `json:"kind"`
	Amount decimal.Decimal   `json:"amount"`
}

// BalancesByUser reads committed balances outside of any transaction, for
// dashboards and account metrics.
func (s *Service) BalancesByUser(ctx context.Context, userID string) ([]Balance, error) {
	rows, err := s.pool.Query(ctx, "select a.kind, coalesce(sum(le.amount), 0) from accounts a left join ledger_entries le on le.account_id = a.id where a.owner_type = 'user' and a.owner_user_id = $1 group by a.kind order by a.kind", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Balance
	for rows.Next() {
		var b Balance
		var kind string
		if err := rows.Scan(&kind, &b.Amount); err != nil {
			return nil, err
		}
		b.Kind = types.AccountKind(kind)
		out = append(out, b)
	}
	return out, rows.Err()
}

// BalanceByKind is BalancesByUser narrowed to one account kind; missing
// accounts read as zero.
func (s *Service) BalanceByKind(ctx context.Context, userID string, kind types.AccountKind) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.pool.QueryRow(ctx, "select coalesce(sum(le.amount), 0) from accounts a left join ledger_entries le on le.account_id = a.id where a.owner_type = 'user' and a.owner_user_id = $1 and a.kind = $2", userID, string(kind)).Scan(&sum)
	return sum, err
}

func (s *Service) Transfer(ctx context.Context, tx pgx.Tx, fromAccountID, toAccountID string, amount decimal.Decimal, entryType types.LedgerEntryType, ref string) (string, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return "", errors.New("amount must be positive")
	}
	var txID string
	err := tx.QueryRow(ctx, "insert into ledger_txs (ref, created_at) values ($1, $2) returning id", ref, time.Now().UTC()).Scan(&txID)
	if err != nil {
		return "", err
	}
	if _, err := s.appendEntry(ctx, tx, txID, fromAccountID, amount.Neg(), entryType); err != nil {
		return "", err
	}
	if _, err := s.appendEntry(ctx, tx, txID, toAccountID, amount, entryType); err != nil {
		return "", err
	}
	return txID, nil
}

// ReserveMargin moves amount from the user's available account to the
// reserved account, failing when available funds do not cover it.
func (s *Service) ReserveMargin(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal, ref string) error {
	available, err := s.EnsureAccount(ctx, tx, userID, types.AccountKindAvailable)
	if err != nil {
		return err
	}
	balance, err := s.GetBalance(ctx, tx, available)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	reserved, err := s.EnsureAccount(ctx, tx, userID, types.AccountKindReserved)
	if err != nil {
		return err
	}
	_, err = s.Transfer(ctx, tx, available, reserved, amount, types.LedgerEntryTypeReserve, ref)
	return err
}

// ReleaseMargin returns reserved margin to the available account.
func (s *Service) ReleaseMargin(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal, ref string) error {
	reserved, err := s.EnsureAccount(ctx, tx, userID, types.AccountKindReserved)
	if err != nil {
		return err
	}
	available, err := s.EnsureAccount(ctx, tx, userID, types.AccountKindAvailable)
	if err != nil {
		return err
	}
	_, err = s.Transfer(ctx, tx, reserved, available, amount, types.LedgerEntryTypeRelease, ref)
	return err
}

// SettlePnL books a realized trade result between the user's available
// account and the system book. Positive pnl pays the user.
func (s *Service) SettlePnL(ctx context.Context, tx pgx.Tx, userID string, pnl decimal.Decimal, ref string) error {
	if pnl.IsZero() {
		return nil
	}
	available, err := s.EnsureAccount(ctx, tx, userID, types.AccountKindAvailable)
	if err != nil {
		return err
	}
	system, err := s.EnsureSystemAccount(ctx, tx, types.AccountKindAvailable)
	if err != nil {
		return err
	}
	if pnl.GreaterThan(decimal.Zero) {
		_, err = s.Transfer(ctx, tx, system, available, pnl, types.LedgerEntryTypeTrade, ref)
		return err
	}
	_, err = s.Transfer(ctx, tx, available, system, pnl.Neg(), types.LedgerEntryTypeTrade, ref)
	return err
}

var ErrInsufficientFunds = errors.New("insufficient funds")

func (s *Service) appendEntry(ctx context.Context, tx pgx.Tx, txID, accountID string, amount decimal.Decimal, entryType types.LedgerEntryType) (string, error) {
	// Serialize chain appends across concurrent transactions.
	_, err := tx.Exec(ctx, "select pg_advisory_xact_lock(1)")
	if err != nil {
		return "", err
	}
	var prevHash *string
	err = tx.QueryRow(ctx, "select encode(hash, 'hex') from ledger_entries order by sequence desc limit 1").Scan(&prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	var entryID string
	var seq int64
	err = tx.QueryRow(ctx, "insert into ledger_entries (tx_id, account_id, amount, entry_type, prev_hash, created_at) values ($1, $2, $3, $4, decode(nullif($5,''), 'hex'), $6) returning id, sequence", txID, accountID, amount, string(entryType), nullable(prevHash), time.Now().UTC()).Scan(&entryID, &seq)
	if err != nil {
		return "", err
	}
	hash := computeHash(entryID, txID, accountID, amount, entryType, seq, prevHash)
	_, err = tx.Exec(ctx, "update ledger_entries set hash = decode($1, 'hex') where id = $2", hash, entryID)
	if err != nil {
		return "", err
	}
	return entryID, nil
}

// VerifyChain walks the full entry chain and recomputes every hash. It
// returns the number of entries checked, or an error naming the first
// sequence where the chain breaks.
func (s *Service) VerifyChain(ctx context.Context) (int64, error) {
	rows, err := s.pool.Query(ctx, "select id, tx_id, account_id, amount, entry_type, sequence, encode(prev_hash, 'hex'), encode(hash, 'hex') from ledger_entries order by sequence")
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var checked int64
	var prev *string
	for rows.Next() {
		var entryID, txID, accountID, entryType string
		var amount decimal.Decimal
		var seq int64
		var prevHash, hash *string
		if err := rows.Scan(&entryID, &txID, &accountID, &amount, &entryType, &seq, &prevHash, &hash); err != nil {
			return checked, err
		}
		if nullable(prevHash) != nullable(prev) {
			return checked, fmt.Errorf("chain broken at sequence %d: prev_hash mismatch", seq)
		}
		want := computeHash(entryID, txID, accountID, amount, types.LedgerEntryType(entryType), seq, prevHash)
		if hash == nil || *hash != want {
			return checked, fmt.Errorf("chain broken at sequence %d: hash mismatch", seq)
		}
		prev = hash
		checked++
	}
	return checked, rows.Err()
}

func computeHash(entryID, txID, accountID string, amount decimal.Decimal, entryType types.LedgerEntryType, seq int64, prevHash *string) string {
	buf := entryID + "|" + txID + "|" + accountID + "|" + amount.String() + "|" + string(entryType) + "|" + strconv.FormatInt(seq, 10) + "|"
	if prevHash != nil {
		buf += *prevHash
	}
	sum := sha256.Sum256([]byte(buf))
	return hex.EncodeToString(sum[:])
}

func nullable(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
