package ledger

import (
	"context"
	"fmt"

	"adgen/internal/domain"
	"adgen/internal/infra"
	"adgen/internal/sqlinline"
)

// PGLedger keeps balances in the credit_balances table. Debits are a single
// conditional UPDATE, so concurrent requests for one caller cannot overdraw.
type PGLedger struct {
	sql infra.SQLExecutor
}

func NewPGLedger(sql infra.SQLExecutor) *PGLedger {
	return &PGLedger{sql: sql}
}

func (l *PGLedger) Debit(ctx context.Context, userID, keyID string, amount int) (int, error) {
	if err := validate(userID, keyID, amount); err != nil {
		return 0, err
	}
	var remaining int
	if err := l.sql.QueryRow(ctx, sqlinline.QDebitCredits, userID, keyID, amount).Scan(&remaining); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrInsufficientCredits
		}
		return 0, fmt.Errorf("debit credits: %w", err)
	}
	return remaining, nil
}

func (l *PGLedger) Credit(ctx context.Context, userID, keyID string, amount int) (int, error) {
	if err := validate(userID, keyID, amount); err != nil {
		return 0, err
	}
	var balance int
	if err := l.sql.QueryRow(ctx, sqlinline.QCreditCredits, userID, keyID, amount).Scan(&balance); err != nil {
		return 0, fmt.Errorf("credit credits: %w", err)
	}
	return balance, nil
}

func (l *PGLedger) Balance(ctx context.Context, userID, keyID string) (int, error) {
	var balance int
	if err := l.sql.QueryRow(ctx, sqlinline.QSelectCreditBalance, userID, keyID).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("select balance: %w", err)
	}
	return balance, nil
}

var _ domain.CreditLedger = (*PGLedger)(nil)
