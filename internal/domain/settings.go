package domain

// DispatchSettings is the admin-tunable snapshot read for each decision.
type DispatchSettings struct {
	ExternalSLAMinutes  int
	InternalSLAMinutes  int
	MaxExternalAttempts int
	MaxInternalAttempts int
}
