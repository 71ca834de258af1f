package domain

// ErrorKind classifies why a dispatch did not succeed.
type ErrorKind string

const (
	ErrorKindNone          ErrorKind = "none"
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindTransport     ErrorKind = "transport"
	ErrorKindApplication   ErrorKind = "application"
	ErrorKindLoggingSink   ErrorKind = "logging_sink"
	ErrorKindInternal      ErrorKind = "internal"
)

// Outcome is produced once per dispatch. StatusCode is zero when no
// exchange ever completed.
type Outcome struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	Attempts     int
}

func IsSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}
