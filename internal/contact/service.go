package contact

import (
	"context"
	"time"

	"chainrelay/internal/identity"
	"chainrelay/pkg/domain"
	dErrors "chainrelay/pkg/domain-errors"
)

const maxPartnerIDLength = 256

// Service records contacts. The recorder arrives as a derived hash; the
// partner arrives as the raw exchange identifier the two devices shared and
// is hashed here, at the trust boundary.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Record persists one directional contact: recorder says they met partner.
func (s *Service) Record(ctx context.Context, recorder domain.ContactHash, partnerID string, recordedAt time.Time) (Contact, error) {
	if partnerID == "" {
		return Contact{}, dErrors.New(dErrors.CodeInvalidInput, "partner_id is required")
	}
	if len(partnerID) > maxPartnerIDLength {
		return Contact{}, dErrors.New(dErrors.CodeInvalidInput, "partner_id is too long")
	}
	partner := domain.ContactHash(identity.Hash(identity.PurposeContact, partnerID))
	if partner == recorder {
		return Contact{}, dErrors.New(dErrors.CodeInvalidInput, "cannot record a contact with yourself")
	}
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	if recordedAt.After(time.Now()) {
		return Contact{}, dErrors.New(dErrors.CodeInvalidInput, "recorded_at must not be in the future")
	}

	c := Contact{
		ID:          domain.NewContactID(),
		OwnerHash:   recorder,
		PartnerHash: partner,
		RecordedAt:  recordedAt,
	}
	if err := s.store.Save(ctx, c); err != nil {
		return Contact{}, dErrors.Wrap(dErrors.CodeInternal, "record contact", err)
	}
	return c, nil
}
