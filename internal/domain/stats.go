package domain

// BrokerStats aggregates a broker's assignment outcomes.
type BrokerStats struct {
	BrokerID          string
	Received          int64
	Expired           int64
	Accepted          int64
	AcceptedWithinSLA int64
	ComplianceRate    float64
}
