package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainrelay/internal/batch"
	"chainrelay/internal/chain"
	"chainrelay/internal/identity"
	"chainrelay/internal/push"
	"chainrelay/internal/report"
	"chainrelay/internal/user"
	"chainrelay/pkg/domain"
	dErrors "chainrelay/pkg/domain-errors"
)

type capturedPushes struct {
	mu   sync.Mutex
	msgs []push.Message
}

func (c *capturedPushes) flush(_ context.Context, msgs []push.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msgs...)
	return nil
}

type materializerFixture struct {
	store  *InMemoryStore
	users  *user.InMemoryStore
	tokens *push.InMemoryTokenStore
	docs   *batch.Writer[Notification]
	pushes *batch.Writer[push.Message]
	sent   *capturedPushes
	mat    *Materializer
}

func newMaterializerFixture(t *testing.T) *materializerFixture {
	t.Helper()
	f := &materializerFixture{
		store:  NewInMemoryStore(),
		users:  user.NewInMemoryStore(),
		tokens: push.NewInMemoryTokenStore(),
		sent:   &capturedPushes{},
	}
	f.docs = batch.NewWriter("docs", batch.DefaultCeiling, f.store.BulkUpsert)
	f.pushes = batch.NewWriter("pushes", batch.DefaultCeiling, f.sent.flush)
	f.mat = NewMaterializer(f.store, user.NewCache(f.users, 100), f.tokens, f.docs, f.pushes)
	return f
}

func (f *materializerFixture) register(t *testing.T, rawID string) identity.Pseudonyms {
	t.Helper()
	ids := identity.Derive(rawID)
	err := f.users.Save(context.Background(), user.User{
		ContactHash: ids.Contact,
		NotifyHash:  ids.Notify,
		ChainHash:   ids.Chain,
		OwnerHash:   ids.Owner,
		Platform:    "ios",
	})
	require.NoError(t, err)
	return ids
}

func positiveReport(ids identity.Pseudonyms, disclosure domain.DisclosureLevel) report.Report {
	return report.Report{
		ID:          domain.NewReportID(),
		OwnerHash:   ids.Owner,
		ContactHash: ids.Contact,
		NotifyHash:  ids.Notify,
		ChainHash:   ids.Chain,
		Conditions:  []domain.ConditionType{domain.ConditionChlamydia},
		TestDate:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Disclosure:  disclosure,
		Result:      report.ResultPositive,
		Status:      report.StatusProcessing,
	}
}

func TestMaterialize(t *testing.T) {
	ctx := context.Background()

	t.Run("creates one document per recipient plus the reporter's own", func(t *testing.T) {
		f := newMaterializerFixture(t)
		reporter := f.register(t, "alice")
		bob := f.register(t, "bob")
		carol := f.register(t, "carol")

		results := chain.NewDedup()
		results.Add(chain.Path{reporter.Contact, bob.Contact})
		results.Add(chain.Path{reporter.Contact, bob.Contact, carol.Contact})

		rpt := positiveReport(reporter, domain.DisclosureFull)
		res, err := f.mat.Materialize(ctx, rpt, results)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Created)
		f.docs.Flush(ctx)

		self, err := f.store.FindByReportAndRecipient(ctx, rpt.ID, reporter.Notify)
		require.NoError(t, err)
		assert.Equal(t, 0, self.HopDepth)
		assert.Empty(t, self.ChainPath)

		direct, err := f.store.FindByReportAndRecipient(ctx, rpt.ID, bob.Notify)
		require.NoError(t, err)
		assert.Equal(t, TypeExposure, direct.Type)
		assert.Equal(t, 1, direct.HopDepth)
		assert.Equal(t, []domain.ChainHash{reporter.Chain}, direct.ChainPath)

		second, err := f.store.FindByReportAndRecipient(ctx, rpt.ID, carol.Notify)
		require.NoError(t, err)
		assert.Equal(t, 2, second.HopDepth)
		assert.Equal(t, []domain.ChainHash{reporter.Chain, bob.Chain}, second.ChainPath)
	})

	t.Run("multi-path recipient collapses to one document with all paths", func(t *testing.T) {
		f := newMaterializerFixture(t)
		reporter := f.register(t, "alice")
		bob := f.register(t, "bob")
		carol := f.register(t, "carol")
		dave := f.register(t, "dave")

		results := chain.NewDedup()
		results.Add(chain.Path{reporter.Contact, bob.Contact})
		results.Add(chain.Path{reporter.Contact, carol.Contact})
		results.Add(chain.Path{reporter.Contact, bob.Contact, dave.Contact})
		results.Add(chain.Path{reporter.Contact, carol.Contact, dave.Contact})

		rpt := positiveReport(reporter, domain.DisclosureFull)
		_, err := f.mat.Materialize(ctx, rpt, results)
		require.NoError(t, err)
		f.docs.Flush(ctx)

		n, err := f.store.FindByReportAndRecipient(ctx, rpt.ID, dave.Notify)
		require.NoError(t, err)
		assert.Equal(t, 2, n.HopDepth)
		assert.Len(t, n.ChainPaths, 2)

		count, err := f.store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, count)
	})

	t.Run("rematerializing merges instead of duplicating", func(t *testing.T) {
		f := newMaterializerFixture(t)
		reporter := f.register(t, "alice")
		bob := f.register(t, "bob")

		results := chain.NewDedup()
		results.Add(chain.Path{reporter.Contact, bob.Contact})

		rpt := positiveReport(reporter, domain.DisclosureFull)
		_, err := f.mat.Materialize(ctx, rpt, results)
		require.NoError(t, err)
		f.docs.Flush(ctx)

		first, err := f.store.FindByReportAndRecipient(ctx, rpt.ID, bob.Notify)
		require.NoError(t, err)

		res, err := f.mat.Materialize(ctx, rpt, results)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)
		f.docs.Flush(ctx)

		second, err := f.store.FindByReportAndRecipient(ctx, rpt.ID, bob.Notify)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("disclosure redacts condition and date", func(t *testing.T) {
		cases := []struct {
			disclosure    domain.DisclosureLevel
			wantCondition bool
			wantDate      bool
		}{
			{domain.DisclosureFull, true, true},
			{domain.DisclosureConditionOnly, true, false},
			{domain.DisclosureDateOnly, false, true},
			{domain.DisclosureAnonymous, false, false},
		}
		for _, tc := range cases {
			t.Run(string(tc.disclosure), func(t *testing.T) {
				f := newMaterializerFixture(t)
				reporter := f.register(t, "alice")
				bob := f.register(t, "bob")

				results := chain.NewDedup()
				results.Add(chain.Path{reporter.Contact, bob.Contact})

				rpt := positiveReport(reporter, tc.disclosure)
				_, err := f.mat.Materialize(ctx, rpt, results)
				require.NoError(t, err)
				f.docs.Flush(ctx)

				n, err := f.store.FindByReportAndRecipient(ctx, rpt.ID, bob.Notify)
				require.NoError(t, err)
				assert.Equal(t, tc.wantCondition, n.Condition != nil)
				assert.Equal(t, tc.wantDate, n.ExposureDate != nil)
			})
		}
	})

	t.Run("unregistered recipient is skipped without failing the batch", func(t *testing.T) {
		f := newMaterializerFixture(t)
		reporter := f.register(t, "alice")
		bob := f.register(t, "bob")
		ghost := identity.Derive("never-registered")

		results := chain.NewDedup()
		results.Add(chain.Path{reporter.Contact, ghost.Contact})
		results.Add(chain.Path{reporter.Contact, bob.Contact})

		rpt := positiveReport(reporter, domain.DisclosureFull)
		res, err := f.mat.Materialize(ctx, rpt, results)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 2, res.Created)
	})

	t.Run("pushes go only to recipients with a token", func(t *testing.T) {
		f := newMaterializerFixture(t)
		reporter := f.register(t, "alice")
		bob := f.register(t, "bob")
		carol := f.register(t, "carol")
		require.NoError(t, f.tokens.Save(ctx, bob.Notify, "token-bob"))

		results := chain.NewDedup()
		results.Add(chain.Path{reporter.Contact, bob.Contact})
		results.Add(chain.Path{reporter.Contact, carol.Contact})

		rpt := positiveReport(reporter, domain.DisclosureFull)
		_, err := f.mat.Materialize(ctx, rpt, results)
		require.NoError(t, err)
		f.pushes.Flush(ctx)

		require.Len(t, f.sent.msgs, 1)
		assert.Equal(t, "token-bob", f.sent.msgs[0].RecipientToken)
		assert.Equal(t, string(TypeExposure), f.sent.msgs[0].Type)
	})
}

func TestApplyNegative(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*materializerFixture, identity.Pseudonyms, Notification) {
		t.Helper()
		f := newMaterializerFixture(t)
		reporter := f.register(t, "alice")
		bob := f.register(t, "bob")

		results := chain.NewDedup()
		results.Add(chain.Path{reporter.Contact, bob.Contact})
		rpt := positiveReport(reporter, domain.DisclosureFull)
		_, err := f.mat.Materialize(ctx, rpt, results)
		require.NoError(t, err)
		f.docs.Flush(ctx)

		n, err := f.store.FindByReportAndRecipient(ctx, rpt.ID, bob.Notify)
		require.NoError(t, err)
		return f, bob, n
	}

	t.Run("flips the targeted notification to a status update", func(t *testing.T) {
		f, bob, target := setup(t)
		rpt := report.Report{
			ID:                   domain.NewReportID(),
			NotifyHash:           bob.Notify,
			Result:               report.ResultNegative,
			TargetNotificationID: &target.ID,
		}
		before, err := f.store.Count(ctx)
		require.NoError(t, err)

		updated, err := f.mat.ApplyNegative(ctx, rpt)
		require.NoError(t, err)
		assert.Equal(t, TypeStatusUpdate, updated.Type)
		f.docs.Flush(ctx)

		after, err := f.store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after, "negative reports must not create documents")
	})

	t.Run("rejects a target owned by another device", func(t *testing.T) {
		f, _, target := setup(t)
		stranger := identity.Derive("mallory")
		rpt := report.Report{
			ID:                   domain.NewReportID(),
			NotifyHash:           stranger.Notify,
			Result:               report.ResultNegative,
			TargetNotificationID: &target.ID,
		}
		_, err := f.mat.ApplyNegative(ctx, rpt)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("already flipped target stays flipped without a new write", func(t *testing.T) {
		f, bob, target := setup(t)
		rpt := report.Report{
			ID:                   domain.NewReportID(),
			NotifyHash:           bob.Notify,
			Result:               report.ResultNegative,
			TargetNotificationID: &target.ID,
		}
		_, err := f.mat.ApplyNegative(ctx, rpt)
		require.NoError(t, err)
		f.docs.Flush(ctx)

		_, err = f.mat.ApplyNegative(ctx, rpt)
		require.NoError(t, err)
		assert.Equal(t, 0, f.docs.Len())
	})
}
