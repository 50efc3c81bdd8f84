package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasonEncodingKeepsVariant(t *testing.T) {
	prev := "broker-9"
	data, err := MarshalReason(PlantonistaFallbackReason{PreviousBrokerID: &prev, Attempts: 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PLANTONISTA_FALLBACK","previous_broker_id":"broker-9","attempts":5}`, string(data))

	decoded, err := UnmarshalReason(data)
	require.NoError(t, err)
	fallback, ok := decoded.(PlantonistaFallbackReason)
	require.True(t, ok)
	assert.Equal(t, 5, fallback.Attempts)
	assert.Equal(t, "broker-9", *fallback.PreviousBrokerID)
}

func TestUnmarshalReasonRejectsUnknownType(t *testing.T) {
	_, err := UnmarshalReason([]byte(`{"type":"ROUND_ROBIN"}`))
	assert.ErrorIs(t, err, ErrUnknownReason)

	_, err = UnmarshalReason([]byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownReason)
}

func TestReasonTier(t *testing.T) {
	tier, ok := ReasonTier(InternalTierReason{Attempt: 1, Limit: 2})
	require.True(t, ok)
	assert.Equal(t, TierInternal, tier)

	_, ok = ReasonTier(OwnerLinkReason{})
	assert.False(t, ok)
}

func TestCoverage(t *testing.T) {
	property := &Property{ID: "prop-1", State: "SP", City: "Campinas"}
	broker := &Broker{Coverage: []Coverage{{State: "RJ"}, {State: "sp", City: "campinas"}}}
	assert.True(t, broker.CoversProperty(property))

	stateWide := Coverage{State: "SP"}
	assert.True(t, stateWide.Covers(property))
	assert.False(t, Coverage{State: "SP", City: "Santos"}.Covers(property))
}
