package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default missionctl data directory name (relative to home).
	DefaultDataDir = ".missionctl"
	// DBFile is the filename of the entity store inside the data directory.
	DBFile = "missionctl.db"

	// DefaultListenAddress is the address the dashboard server listens on.
	DefaultListenAddress = ":3000"
	// DefaultSessionQueueSize is the number of frames buffered per viewer before
	// the viewer is considered not writable.
	DefaultSessionQueueSize = 64
	// MaxViewerMessageSize is the biggest message a viewer can send, bigger ones
	// close its connection.
	MaxViewerMessageSize = 64 << 10
)

// Listing limits.
const (
	// EmbeddedLogLimit is the number of logs embedded in a task aggregate.
	EmbeddedLogLimit = 10
	// LogListLimit is the default number of logs of a task log listing.
	LogListLimit = 50
	// ActivityRetention is the number of activities kept after every insertion.
	ActivityRetention = 50
	// ActivityListLimit is the default number of activities of a listing.
	ActivityListLimit = 20
	// ChatListLimit is the default number of chat messages of a listing.
	ChatListLimit = 50
)

// API budget defaults, in the same currency as the reported costs.
const (
	// DefaultDailyBudget is the API spend limit of a UTC day.
	DefaultDailyBudget = 5.0
	// DefaultMonthlyBudget is the API spend limit of a UTC month.
	DefaultMonthlyBudget = 200.0
	// UsageListDays is the number of days an API usage listing covers by default.
	UsageListDays = 30
)

// DBPath returns the entity store path inside a data directory.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}
