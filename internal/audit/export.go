package audit

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "vigil/pkg/domain-errors"
)

// Export is a signed snapshot of a date range of the chain. The signature is
// an HS256 JWS over the export digest; it binds count, root, and the range
// endpoints, not the full payload. Swap in an asymmetric key for third-party
// verification.
type Export struct {
	Events     []Event   `json:"events"`
	MerkleRoot string    `json:"merkleRoot"`
	ExportedAt time.Time `json:"exportTimestamp"`
	Signature  string    `json:"signature"`
}

type exportClaims struct {
	Count        int    `json:"count"`
	MerkleRoot   string `json:"merkleRoot"`
	FirstEventID string `json:"firstEventId"`
	LastEventID  string `json:"lastEventId"`
	jwt.RegisteredClaims
}

// ExportLog filters the chain by inclusive date range (zero times mean
// unbounded) and signs the result.
func (l *Logger) ExportLog(start, end time.Time) (*Export, error) {
	if len(l.signingKey) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "export signing key not configured")
	}

	var filtered []Event
	for _, e := range l.Events() {
		if !start.IsZero() && e.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && e.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, e)
	}

	leaves := make([]string, len(filtered))
	for i, e := range filtered {
		leaves[i] = e.Hash
	}

	export := &Export{
		Events:     filtered,
		MerkleRoot: MerkleRoot(leaves),
		ExportedAt: time.Now().UTC(),
	}

	claims := exportClaims{
		Count:      len(filtered),
		MerkleRoot: export.MerkleRoot,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   "vigil-audit",
			IssuedAt: jwt.NewNumericDate(export.ExportedAt),
		},
	}
	if len(filtered) > 0 {
		claims.FirstEventID = filtered[0].ID
		claims.LastEventID = filtered[len(filtered)-1].ID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signature, err := token.SignedString(l.signingKey)
	if err != nil {
		return nil, fmt.Errorf("sign export: %w", err)
	}
	export.Signature = signature
	return export, nil
}

// VerifySignedExport checks the export signature and that its claims match
// the export content. It does not re-verify per-event hashes; run
// VerifyChainIntegrity on the source chain for that.
func (l *Logger) VerifySignedExport(export *Export) (bool, error) {
	if export == nil || export.Signature == "" {
		return false, nil
	}

	var claims exportClaims
	token, err := jwt.ParseWithClaims(export.Signature, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return l.signingKey, nil
	})
	if err != nil || !token.Valid {
		return false, nil
	}

	if claims.Count != len(export.Events) || claims.MerkleRoot != export.MerkleRoot {
		return false, nil
	}
	if len(export.Events) > 0 {
		if claims.FirstEventID != export.Events[0].ID ||
			claims.LastEventID != export.Events[len(export.Events)-1].ID {
			return false, nil
		}
	}

	leaves := make([]string, len(export.Events))
	for i, e := range export.Events {
		leaves[i] = e.Hash
	}
	return MerkleRoot(leaves) == export.MerkleRoot, nil
}
