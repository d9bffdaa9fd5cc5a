package config

const (
	HCType          = "Content-Type"
	HAuthorization  = "Authorization"
	HCorrelationID  = "X-Correlation-Id"
	BearerPrefix    = "Bearer "
	CTypeJSON       = "application/json"
	QueryParamToken = "token"
)
