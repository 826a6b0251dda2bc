// Package identity derives purpose-specific pseudonymous identifiers from
// raw user identifiers. A raw identifier must never leave this package and
// the transport layer that received it; every other component operates on
// the derived hashes only.
package identity

import (
	"crypto/sha256"
	"encoding/hex"

	"chainrelay/pkg/domain"
)

// Purpose selects the hash domain. For a fixed raw identifier the outputs
// for distinct purposes are computationally unrelated, so records in one
// relation cannot be correlated with records in another.
type Purpose string

const (
	PurposeContact Purpose = "contact"
	PurposeNotify  Purpose = "notify"
	PurposeChain   Purpose = "chain"
	PurposeReport  Purpose = "report"
)

// Domain-separation prefixes. The contact purpose uses no prefix: contact
// records written by earlier client versions were keyed by the bare digest
// and must stay discoverable.
var prefixes = map[Purpose]string{
	PurposeContact: "",
	PurposeNotify:  "notify:",
	PurposeChain:   "chain:",
	PurposeReport:  "report:",
}

// Hash returns the lowercase hex SHA-256 digest of the purpose prefix
// concatenated with the raw identifier. Deterministic, total.
func Hash(purpose Purpose, rawID string) string {
	sum := sha256.Sum256([]byte(prefixes[purpose] + rawID))
	return hex.EncodeToString(sum[:])
}

// Pseudonyms bundles the four purpose hashes of one raw identifier. Derived
// once at device registration and at report submission; the async pipeline
// only ever sees this bundle or its parts.
type Pseudonyms struct {
	Contact domain.ContactHash
	Notify  domain.NotifyHash
	Chain   domain.ChainHash
	Owner   domain.OwnerHash
}

// Derive computes all four purpose hashes for a raw identifier.
func Derive(rawID string) Pseudonyms {
	return Pseudonyms{
		Contact: domain.ContactHash(Hash(PurposeContact, rawID)),
		Notify:  domain.NotifyHash(Hash(PurposeNotify, rawID)),
		Chain:   domain.ChainHash(Hash(PurposeChain, rawID)),
		Owner:   domain.OwnerHash(Hash(PurposeReport, rawID)),
	}
}
