package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

var defaultSettings = domain.DispatchSettings{
	ExternalSLAMinutes:  5,
	InternalSLAMinutes:  10,
	MaxExternalAttempts: 3,
	MaxInternalAttempts: 2,
}

func attempt(kind domain.BrokerKind, reason domain.Reason) domain.Assignment {
	return domain.Assignment{
		ID:         "a",
		ProspectID: "p-1",
		BrokerID:   "b-" + string(kind),
		BrokerKind: kind,
		Status:     domain.AssignmentStatusExpired,
		Reason:     reason,
	}
}

func TestClassifyExpirySLABoundary(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline, err := ComputeDeadline(domain.TierExternal, false, created, defaultSettings)
	require.NoError(t, err)
	require.NotNil(t, deadline)
	assert.Equal(t, created.Add(5*time.Minute), *deadline)

	a := &domain.Assignment{
		ProspectID: "p-1",
		Status:     domain.AssignmentStatusPending,
		Reason:     domain.ExternalTierReason{Attempt: 1, Limit: 3},
		CreatedAt:  created,
		Deadline:   deadline,
	}

	before, err := ClassifyExpiry(a, created.Add(4*time.Minute+59*time.Second), defaultSettings)
	require.NoError(t, err)
	assert.False(t, before.Expired)
	assert.Equal(t, 5, before.SLAMinutes)

	at, err := ClassifyExpiry(a, created.Add(5*time.Minute), defaultSettings)
	require.NoError(t, err)
	assert.True(t, at.Expired)
	assert.Equal(t, deadline, at.Deadline)
	assert.Contains(t, at.Reason, "breached")
}

func TestClassifyExpiryNoSLA(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	cases := []struct {
		name string
		a    domain.Assignment
	}{
		{
			name: "null deadline",
			a:    domain.Assignment{Status: domain.AssignmentStatusAccepted, Reason: domain.PlantonistaFallbackReason{}},
		},
		{
			name: "owner link with stray deadline",
			a:    domain.Assignment{Status: domain.AssignmentStatusPending, Reason: domain.OwnerLinkReason{}, Deadline: &past},
		},
		{
			name: "accepted before deadline",
			a:    domain.Assignment{Status: domain.AssignmentStatusAccepted, Reason: domain.InternalTierReason{Attempt: 1, Limit: 2}, Deadline: &past},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := ClassifyExpiry(&tc.a, now, defaultSettings)
			require.NoError(t, err)
			assert.False(t, decision.Expired)
			assert.NotEmpty(t, decision.Reason)
		})
	}
}

func TestClassifyExpiryRejectsNil(t *testing.T) {
	_, err := ClassifyExpiry(nil, time.Now(), defaultSettings)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSelectTier(t *testing.T) {
	ext := func(n int) domain.Assignment {
		return attempt(domain.BrokerKindExternal, domain.ExternalTierReason{Attempt: n, Limit: 3})
	}
	in := func(n int) domain.Assignment {
		return attempt(domain.BrokerKindInternal, domain.InternalTierReason{Attempt: n, Limit: 2})
	}

	cases := []struct {
		name    string
		history []domain.Assignment
		tier    domain.Tier
		attempt int
	}{
		{name: "empty history", history: nil, tier: domain.TierExternal, attempt: 1},
		{name: "one external", history: []domain.Assignment{ext(1)}, tier: domain.TierExternal, attempt: 2},
		{name: "external exhausted", history: []domain.Assignment{ext(1), ext(2), ext(3)}, tier: domain.TierInternal, attempt: 1},
		{name: "internal closes external", history: []domain.Assignment{ext(1), in(1)}, tier: domain.TierInternal, attempt: 2},
		{name: "all exhausted", history: []domain.Assignment{ext(1), ext(2), ext(3), in(1), in(2)}, tier: domain.TierPlantonista, attempt: 1},
		{
			name:    "unknown kind counts as external",
			history: []domain.Assignment{attempt(domain.BrokerKindUnknown, domain.ExternalTierReason{Attempt: 1, Limit: 3})},
			tier:    domain.TierExternal,
			attempt: 2,
		},
		{
			name:    "owner link and plantonista ignored",
			history: []domain.Assignment{attempt(domain.BrokerKindExternal, domain.OwnerLinkReason{}), attempt(domain.BrokerKindExternal, domain.PlantonistaFallbackReason{})},
			tier:    domain.TierExternal,
			attempt: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := SelectTier(tc.history, defaultSettings)
			require.NoError(t, err)
			assert.Equal(t, tc.tier, sel.Tier)
			assert.Equal(t, tc.attempt, sel.Attempt)
		})
	}
}

func TestSelectTierZeroLimits(t *testing.T) {
	sel, err := SelectTier(nil, domain.DispatchSettings{MaxExternalAttempts: 0, MaxInternalAttempts: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.TierInternal, sel.Tier)

	sel, err = SelectTier(nil, domain.DispatchSettings{})
	require.NoError(t, err)
	assert.Equal(t, domain.TierPlantonista, sel.Tier)
}

func TestSelectTierRejectsMixedHistory(t *testing.T) {
	other := attempt(domain.BrokerKindExternal, domain.ExternalTierReason{Attempt: 1, Limit: 3})
	other.ProspectID = "p-2"
	_, err := SelectTier([]domain.Assignment{attempt(domain.BrokerKindExternal, domain.ExternalTierReason{}), other}, defaultSettings)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEscalate(t *testing.T) {
	sel := TierSelection{Tier: domain.TierExternal, Attempt: 2, Limit: 3, ExternalAttempts: 1}

	next, ok := Escalate(sel, defaultSettings)
	require.True(t, ok)
	assert.Equal(t, domain.TierInternal, next.Tier)
	assert.Equal(t, 1, next.Attempt)

	next, ok = Escalate(next, defaultSettings)
	require.True(t, ok)
	assert.Equal(t, domain.TierPlantonista, next.Tier)

	_, ok = Escalate(next, defaultSettings)
	assert.False(t, ok)

	noInternal := defaultSettings
	noInternal.MaxInternalAttempts = 0
	next, ok = Escalate(sel, noInternal)
	require.True(t, ok)
	assert.Equal(t, domain.TierPlantonista, next.Tier)
}

// Walks an entire expiry chain and checks tier monotonicity and the length bound.
func TestChainTerminates(t *testing.T) {
	var history []domain.Assignment
	now := time.Now()
	lastRank := 0
	for i := 0; i < 20; i++ {
		sel, err := SelectTier(history, defaultSettings)
		require.NoError(t, err)
		require.GreaterOrEqual(t, sel.Tier.Rank(), lastRank)
		lastRank = sel.Tier.Rank()

		plan, err := PlanAttempt(sel, history, now, defaultSettings)
		require.NoError(t, err)

		kind := domain.BrokerKindExternal
		if sel.Tier == domain.TierInternal {
			kind = domain.BrokerKindInternal
		}
		a := attempt(kind, plan.Reason)
		a.Status = plan.Status
		history = append(history, a)
		if plan.Status == domain.AssignmentStatusAccepted {
			break
		}
	}
	require.Len(t, history, MaxChainLength(defaultSettings))
	last := history[len(history)-1]
	assert.True(t, last.IsPlantonista())
	reason := last.Reason.(domain.PlantonistaFallbackReason)
	assert.Equal(t, 5, reason.Attempts)
	require.NotNil(t, reason.PreviousBrokerID)
	assert.Equal(t, "b-INTERNAL", *reason.PreviousBrokerID)
}

func TestDeadlineAndDisposition(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	d, err := ComputeDeadline(domain.TierPlantonista, false, now, defaultSettings)
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ComputeDeadline(domain.TierExternal, true, now, defaultSettings)
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ComputeDeadline(domain.TierInternal, false, now, defaultSettings)
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), *d)

	negative := defaultSettings
	negative.ExternalSLAMinutes = -3
	d, err = ComputeDeadline(domain.TierExternal, false, now, negative)
	require.NoError(t, err)
	assert.Equal(t, now, *d)

	_, err = ComputeDeadline(domain.Tier("GOLD"), false, now, defaultSettings)
	assert.ErrorIs(t, err, ErrInvalidInput)

	status, err := ComputeDisposition(domain.TierPlantonista, false)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusAccepted, status)

	status, err = ComputeDisposition(domain.TierExternal, true)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusAccepted, status)

	status, err = ComputeDisposition(domain.TierInternal, false)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusPending, status)
}

func TestComplianceRate(t *testing.T) {
	assert.Equal(t, 0.0, ComplianceRate(0, 0, 0))
	assert.Equal(t, 0.5, ComplianceRate(2, 2, 2))
	assert.InDelta(t, 0.75, ComplianceRate(3, 3, 1), 1e-9)
}
