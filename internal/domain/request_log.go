package domain

import "time"

type LogStatus string

const (
	LogStatusSuccess LogStatus = "SUCCESS"
	LogStatusFailed  LogStatus = "FAILED"
)

// RequestLog is the audit row written after every completed attempt.
type RequestLog struct {
	ID           string    `json:"id" db:"id"`
	Trigger      string    `json:"trigger" db:"trigger_name"`
	Method       string    `json:"method" db:"method"`
	URL          string    `json:"url" db:"url"`
	Body         string    `json:"body" db:"body"`
	ContentType  string    `json:"content_type" db:"content_type"`
	StatusCode   int       `json:"status_code" db:"status_code"`
	ResponseBody string    `json:"response_body" db:"response_body"`
	Attempt      int       `json:"attempt" db:"attempt"`
	LoggedAt     time.Time `json:"logged_at" db:"logged_at"`
}

func (l *RequestLog) Status() LogStatus {
	if IsSuccessStatus(l.StatusCode) {
		return LogStatusSuccess
	}
	return LogStatusFailed
}
