package constants

const (
	EnvDevelop    = "develop"
	EnvProduction = "production"
)

const (
	PubSubProviderLocal  = "local"
	PubSubProviderGoogle = "google"
)

// Event types carried in the event_type message attribute.
const (
	EventTypeCatalogSynced        = "catalog.synced"
	EventTypeCatalogSyncRequested = "catalog.sync.requested"
)

// StripeProviderName identifies the billing provider in health responses.
const StripeProviderName = "stripe"
