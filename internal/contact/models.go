// Package contact holds the one-directional contact relation and the
// discovery queries the traversal engine runs against it.
package contact

import (
	"time"

	"chainrelay/pkg/domain"
)

// Contact is one recorded encounter. Directional by design: only the
// recorder (owner) can later be discovered as having had contact with the
// partner, never the other way around. A reporter therefore cannot conjure
// an edge toward someone who never logged them.
type Contact struct {
	ID          domain.ContactID
	OwnerHash   domain.ContactHash // the recorder
	PartnerHash domain.ContactHash // who the recorder says they met
	RecordedAt  time.Time
}
