package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricAPILatency         = "APILatency"
	MetricAPIRequests        = "APIRequests"
	MetricActivationOutcome  = "ActivationOutcome"
	MetricRenewalReminder    = "RenewalReminder"
	MetricOperatorEscalation = "OperatorEscalation"

	// Dimension Keys
	DimEndpoint = "Endpoint"
	DimStatus   = "Status"
	DimResult   = "Result"
	DimChannel  = "Channel"

	// Metric Namespace
	MetricNamespace = "DayPass"
)
