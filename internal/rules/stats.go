package rules

// ComplianceRate is the share of SLA-bound assignments accepted in time.
// It is zero when nothing has been evaluated yet.
func ComplianceRate(acceptedWithinSLA, accepted, expired int64) float64 {
	denominator := accepted + expired
	if denominator <= 0 {
		return 0
	}
	return float64(acceptedWithinSLA) / float64(denominator)
}
