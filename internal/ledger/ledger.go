// Package ledger implements domain.CreditLedger on Postgres, Redis and memory.
package ledger

import (
	"fmt"
	"strings"

	"adgen/internal/domain"
)

func validate(userID, keyID string, amount int) error {
	var fields []string
	if strings.TrimSpace(userID) == "" {
		fields = append(fields, "userId")
	}
	if strings.TrimSpace(keyID) == "" {
		fields = append(fields, "keyId")
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", domain.ErrValidation, amount)
	}
	return nil
}
