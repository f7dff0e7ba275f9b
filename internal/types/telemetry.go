package types

// Telemetry metric names for CloudWatch.
const (
	MetricAPILatency      = "APILatency"
	MetricAPIRequestCount = "APIRequestCount"
	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricDeliveryLatency = "DeliveryLatency"
	MetricDispatchDropped = "DispatchDropped"
	MetricSourceFailure   = "SourceFailure"

	DimMethod   = "Method"
	DimEndpoint = "Endpoint"
	DimStatus   = "Status"
	DimResult   = "Result"
	DimKind     = "Kind"

	// Default namespace; overridable via METRIC_NAMESPACE.
	MetricNamespace = "WPRE"
)
