package shared

const (
	ProjectID = "garmin-importer" // Can be overridden by env var in main if needed

	TopicArchivedActivity = "topic-archived-activity"

	CloudEventSourceImporter = "/integrations/garmin/importer"
	CloudEventTypeArchived   = "com.lancerinf.garmin.activity.archived"

	DefaultCredentialsSecret = "garmin-importer-credentials"
	DefaultGarminAPIURL      = "https://connectapi.garmin.com"
	DefaultGarminTokenURL    = "https://connectapi.garmin.com/oauth-service/oauth/token"
	DefaultSinceDate         = "2016-01-01"

	CollectionAccounts   = "garmin_accounts"
	CollectionActivities = "activities"
	CollectionExecutions = "executions"
)
