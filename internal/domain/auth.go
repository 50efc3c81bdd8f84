package domain

// SubjectType differentiates broker vs operator tokens.
type SubjectType string

const (
	SubjectTypeBroker   SubjectType = "BROKER"
	SubjectTypeOperator SubjectType = "OPERATOR"
)
