package logging

import (
	"sync"

	"github.com/rs/zerolog"
)

// LicensingNotice is the message the node types print once per process.
const LicensingNotice = "This Drata integration is licensed under the Business Source License 1.1 (BSL 1.1). " +
	"Production use by for-profit organizations requires a commercial license."

// Notice emits a message at most once for the lifetime of the value.
// Share one Notice between every node type of a process.
type Notice struct {
	once    sync.Once
	message string
	logger  zerolog.Logger
}

// NewNotice creates a notice that writes message to logger at warn level.
func NewNotice(logger zerolog.Logger, message string) *Notice {
	return &Notice{
		message: message,
		logger:  logger,
	}
}

// Emit writes the notice on the first call and does nothing afterwards.
// It reports whether this call emitted the message.
func (n *Notice) Emit() bool {
	emitted := false
	n.once.Do(func() {
		n.logger.Warn().Msg(n.message)
		emitted = true
	})
	return emitted
}

var (
	defaultNoticeOnce sync.Once
	defaultNotice     *Notice
)

// DefaultNotice returns the process-wide licensing notice.
func DefaultNotice() *Notice {
	defaultNoticeOnce.Do(func() {
		defaultNotice = NewNotice(NewLogger("license"), LicensingNotice)
	})
	return defaultNotice
}
