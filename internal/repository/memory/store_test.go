package memory

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/lead-dispatch/internal/domain"
	"github.com/spec-kit/lead-dispatch/internal/repository"
)

func seed(t *testing.T) *Store {
	t.Helper()
	s := New()
	s.PutProperty(domain.Property{ID: "prop-1", State: "SP", City: "Campinas"})
	s.PutProspect(domain.Prospect{ID: "pros-1", PropertyID: "prop-1"})
	s.PutBroker(domain.Broker{ID: "ext-1", Kind: domain.BrokerKindExternal, Active: true,
		Coverage: []domain.Coverage{{State: "SP"}}})
	return s
}

func pending(prospectID, brokerID string, created time.Time, sla time.Duration) *domain.Assignment {
	deadline := created.Add(sla)
	return &domain.Assignment{
		ProspectID: prospectID,
		BrokerID:   brokerID,
		Status:     domain.AssignmentStatusPending,
		Reason:     domain.ExternalTierReason{Attempt: 1, Limit: 3},
		CreatedAt:  created,
		Deadline:   &deadline,
	}
}

func TestCreateRejectsSecondActiveAssignment(t *testing.T) {
	s := seed(t)
	repo := s.Assignments()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	first := pending("pros-1", "ext-1", now, 5*time.Minute)
	require.NoError(t, repo.Create(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, domain.BrokerKindExternal, first.BrokerKind)

	err := repo.Create(ctx, pending("pros-1", "ext-1", now, 5*time.Minute))
	assert.ErrorIs(t, err, repository.ErrActiveAssignmentExists)

	broker, err := s.Brokers().GetByID(ctx, "ext-1")
	require.NoError(t, err)
	require.NotNil(t, broker.LastAssignedAt)
	assert.True(t, broker.LastAssignedAt.Equal(now))
}

func TestClaimIsExclusiveUnderContention(t *testing.T) {
	s := seed(t)
	repo := s.Assignments()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, pending("pros-1", "ext-1", now, 5*time.Minute)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.Claim(ctx, "pros-1", "ext-1", now.Add(time.Minute))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestClaimAndExpireRespectDeadline(t *testing.T) {
	s := seed(t)
	repo := s.Assignments()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := pending("pros-1", "ext-1", now, 5*time.Minute)
	require.NoError(t, repo.Create(ctx, a))

	_, ok, err := repo.ExpireIfDue(ctx, a.ID, now.Add(5*time.Minute-time.Second))
	require.NoError(t, err)
	assert.False(t, ok, "not due before the deadline")

	_, ok, err = repo.Claim(ctx, "pros-1", "ext-1", now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "claim at the deadline is late")

	expired, ok, err := repo.ExpireIfDue(ctx, a.ID, now.Add(5*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.AssignmentStatusExpired, expired.Status)

	_, ok, err = repo.ExpireIfDue(ctx, a.ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "second expiry is a no-op")

	require.NoError(t, repo.Create(ctx, pending("pros-1", "ext-1", now.Add(6*time.Minute), 5*time.Minute)),
		"expired assignment no longer blocks a new one")
}

func TestClaimRacingExpiryHasOneWinner(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	deadline := created.Add(5 * time.Minute)

	for run := 0; run < 200; run++ {
		s := seed(t)
		repo := s.Assignments()
		a := pending("pros-1", "ext-1", created, 5*time.Minute)
		require.NoError(t, repo.Create(ctx, a))

		var wg sync.WaitGroup
		var claimed, expired bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, ok, err := repo.Claim(ctx, "pros-1", "ext-1", deadline.Add(-time.Millisecond))
			assert.NoError(t, err)
			claimed = ok
		}()
		go func() {
			defer wg.Done()
			_, ok, err := repo.ExpireIfDue(ctx, a.ID, deadline)
			assert.NoError(t, err)
			expired = ok
		}()
		wg.Wait()

		require.True(t, claimed != expired, "run %d: claimed=%v expired=%v", run, claimed, expired)
		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		if claimed {
			assert.Equal(t, domain.AssignmentStatusAccepted, got.Status)
			assert.Nil(t, got.ExpiredAt)
		} else {
			assert.Equal(t, domain.AssignmentStatusExpired, got.Status)
			assert.Nil(t, got.AcceptedAt)
		}
	}
}

func TestBrokerKindIsFrozenAtCreate(t *testing.T) {
	s := seed(t)
	repo := s.Assignments()
	ctx := context.Background()
	s.PutBroker(domain.Broker{ID: "int-1", Kind: domain.BrokerKindInternal, Active: true})

	a := pending("pros-1", "int-1", time.Now(), 10*time.Minute)
	a.Reason = domain.InternalTierReason{Attempt: 1, Limit: 2}
	require.NoError(t, repo.Create(ctx, a))
	assert.Equal(t, domain.BrokerKindInternal, a.BrokerKind)

	s.PutBroker(domain.Broker{ID: "int-1", Kind: domain.BrokerKindExternal, Active: true})
	history, err := repo.ListByProspect(ctx, "pros-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.BrokerKindInternal, history[0].BrokerKind, "reclassification does not rewrite history")

	s.RemoveBroker("int-1")
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BrokerKindInternal, got.BrokerKind, "removal does not rewrite history")
}

func TestOwnerLinkIsNeverOverdue(t *testing.T) {
	s := seed(t)
	repo := s.Assignments()
	ctx := context.Background()
	now := time.Now()
	a := &domain.Assignment{
		ProspectID: "pros-1",
		BrokerID:   "ext-1",
		Status:     domain.AssignmentStatusAccepted,
		Reason:     domain.OwnerLinkReason{},
		CreatedAt:  now,
		AcceptedAt: &now,
	}
	require.NoError(t, repo.Create(ctx, a))

	overdue, err := repo.ListOverdue(ctx, now.Add(24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	_, ok, err := repo.ExpireIfDue(ctx, a.ID, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindEligiblePrefersLeastRecentlyAssigned(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	earlier := time.Now().Add(-time.Hour)
	s.PutBroker(domain.Broker{ID: "ext-1", Kind: domain.BrokerKindExternal, Active: true,
		Coverage: []domain.Coverage{{State: "SP"}}, LastAssignedAt: &earlier})
	s.PutBroker(domain.Broker{ID: "ext-2", Kind: domain.BrokerKindExternal, Active: true,
		Coverage: []domain.Coverage{{State: "SP", City: "Campinas"}}})
	s.PutBroker(domain.Broker{ID: "ext-3", Kind: domain.BrokerKindExternal, Active: true,
		Coverage: []domain.Coverage{{State: "RJ"}}})
	s.PutBroker(domain.Broker{ID: "int-1", Kind: domain.BrokerKindInternal, Active: false,
		Coverage: []domain.Coverage{{State: "SP"}}})
	s.PutBroker(domain.Broker{ID: "duty-1", Kind: domain.BrokerKindInternal, Active: true, OnDuty: true})

	property, err := s.Properties().GetByID(ctx, "prop-1")
	require.NoError(t, err)

	b, err := s.Brokers().FindEligible(ctx, property, domain.TierExternal, nil)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "ext-2", b.ID, "never-assigned broker first")

	b, err = s.Brokers().FindEligible(ctx, property, domain.TierExternal, []string{"ext-2"})
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "ext-1", b.ID)

	b, err = s.Brokers().FindEligible(ctx, property, domain.TierInternal, nil)
	require.NoError(t, err)
	assert.Nil(t, b, "inactive internal broker is not eligible")

	b, err = s.Brokers().FindEligible(ctx, property, domain.TierPlantonista, nil)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "duty-1", b.ID)
}

func TestListStalledSkipsActiveAndStuckChains(t *testing.T) {
	s := seed(t)
	s.PutProspect(domain.Prospect{ID: "pros-2", PropertyID: "prop-1"})
	repo := s.Assignments()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	a := pending("pros-1", "ext-1", now, time.Minute)
	require.NoError(t, repo.Create(ctx, a))
	_, ok, err := repo.ExpireIfDue(ctx, a.ID, now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	b := pending("pros-2", "ext-1", now, time.Minute)
	require.NoError(t, repo.Create(ctx, b))

	stalled, err := s.Prospects().ListStalled(ctx, now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, "pros-1", stalled[0].ID)

	stalled, err = s.Prospects().ListStalled(ctx, now.Add(30*time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, stalled, "within grace period")

	require.NoError(t, s.StuckProspects().Record(ctx, &domain.StuckProspect{ProspectID: "pros-1", PropertyID: "prop-1"}))
	stalled, err = s.Prospects().ListStalled(ctx, now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, stalled, "stuck prospects wait for an operator")
}

func TestBrokerStatsCountsOnlySLABoundAcceptances(t *testing.T) {
	s := seed(t)
	repo := s.Assignments()
	ctx := context.Background()
	s.PutProspect(domain.Prospect{ID: "pros-2", PropertyID: "prop-1"})
	s.PutProspect(domain.Prospect{ID: "pros-3", PropertyID: "prop-1"})
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	a := pending("pros-1", "ext-1", now, 5*time.Minute)
	require.NoError(t, repo.Create(ctx, a))
	_, ok, err := repo.Claim(ctx, "pros-1", "ext-1", now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	b := pending("pros-2", "ext-1", now, 5*time.Minute)
	require.NoError(t, repo.Create(ctx, b))
	_, ok, err = repo.ExpireIfDue(ctx, b.ID, now.Add(10*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Create(ctx, &domain.Assignment{
		ProspectID: "pros-3", BrokerID: "ext-1", Status: domain.AssignmentStatusAccepted,
		Reason: domain.OwnerLinkReason{}, CreatedAt: now, AcceptedAt: &now,
	}))

	stats, err := repo.BrokerStats(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Received)
	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, int64(1), stats.AcceptedWithinSLA)
	assert.Equal(t, int64(1), stats.Expired)
}

func TestLoadSeed(t *testing.T) {
	s := New()
	doc := `{
		"properties": [{"id": "prop-1", "state": "SP", "owner_broker_id": "int-1"}],
		"brokers": [
			{"id": "int-1", "kind": "INTERNAL", "coverage": [{"state": "SP"}]},
			{"id": "duty-1", "kind": "INTERNAL", "on_duty": true, "active": false}
		],
		"prospects": [{"id": "pros-1", "property_id": "prop-1"}]
	}`
	require.NoError(t, s.Load(strings.NewReader(doc)))
	ctx := context.Background()

	owner, err := s.Properties().GetOwnerLink(ctx, "prop-1")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "int-1", *owner)

	duty, err := s.Brokers().GetByID(ctx, "duty-1")
	require.NoError(t, err)
	assert.False(t, duty.Active)

	err = New().Load(strings.NewReader(`{"prospects": [{"id": "p", "property_id": "nope"}]}`))
	assert.Error(t, err)
}
