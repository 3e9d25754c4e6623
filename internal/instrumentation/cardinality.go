package instrumentation

import "strings"

// Gmail API operation names used as the "operation" metric label and in span names.
const (
	OperationListMessages  = "messages.list"
	OperationGetMessage    = "messages.get"
	OperationSendMessage   = "messages.send"
	OperationGetAttachment = "attachments.get"
	OperationGetLabel      = "labels.get"
	OperationGetThread     = "threads.get"
)

// NormalizeMethod bounds the cardinality of the method label. Names that are
// not registered (typos from callers) collapse into a single value.
func NormalizeMethod(method string, known func(string) bool) string {
	if known != nil && known(method) {
		return method
	}
	if strings.TrimSpace(method) == "" {
		return "empty"
	}
	return "unregistered"
}
