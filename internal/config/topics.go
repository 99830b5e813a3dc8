package config

const (
	// TopicDocumentIngested is the NSQ topic for completed document ingestions.
	TopicDocumentIngested = "document.ingested"

	// TopicDocumentExpired is the NSQ topic for retention-driven chunk evictions.
	TopicDocumentExpired = "document.expired"

	// TopicDocumentExpiryFailed is the NSQ topic for retention fire failures.
	TopicDocumentExpiryFailed = "document.expiry_failed"
)
