package sqlinline

import (
	"testing"

	"adgen/internal/infra"
)

func TestStatementsCarryMarkers(t *testing.T) {
	statements := map[string]string{
		"QInsertAd":               QInsertAd,
		"QUpsertAd":               QUpsertAd,
		"QSelectAdByID":           QSelectAdByID,
		"QSelectAdsByOwner":       QSelectAdsByOwner,
		"QSelectAdsByStatus":      QSelectAdsByStatus,
		"QMarkAdCompleted":        QMarkAdCompleted,
		"QMarkAdFailed":           QMarkAdFailed,
		"QDebitCredits":           QDebitCredits,
		"QCreditCredits":          QCreditCredits,
		"QSelectCreditBalance":    QSelectCreditBalance,
		"QSelectIntegrationToken": QSelectIntegrationToken,
		"QUpsertIntegrationToken": QUpsertIntegrationToken,
		"QEnsureSchema":           QEnsureSchema,
	}

	seen := make(map[string]string, len(statements))
	for name, stmt := range statements {
		marker, body, err := infra.ExtractMarker(stmt)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if body == "" {
			t.Fatalf("%s: empty body", name)
		}
		if other, dup := seen[marker]; dup {
			t.Fatalf("%s reuses marker %s from %s", name, marker, other)
		}
		seen[marker] = name
	}
}
