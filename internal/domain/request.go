package domain

import "strings"

// Recognised keys of the loosely-typed configuration map.
const (
	ConfigKeyURL         = "url"
	ConfigKeyMethod      = "method"
	ConfigKeyBody        = "body"
	ConfigKeyContentType = "contentType"
)

const DefaultContentType = "application/json"

type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// ParseMethod is case-insensitive. Anything unrecognised becomes GET.
func ParseMethod(s string) Method {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodPost, MethodPut, MethodDelete:
		return m
	default:
		return MethodGet
	}
}

// CarriesBody reports whether requests with this method may have an entity.
func (m Method) CarriesBody() bool {
	return m == MethodPost || m == MethodPut
}

func (m Method) String() string {
	return string(m)
}

// RequestSpec describes the single outbound request of one dispatch.
type RequestSpec struct {
	URL         string
	Method      Method
	Body        string
	ContentType string
}

// HasEntity is true only for POST/PUT with a non-empty body.
func (s RequestSpec) HasEntity() bool {
	return s.Method.CarriesBody() && s.Body != ""
}

func (s RequestSpec) EffectiveContentType() string {
	if s.ContentType != "" {
		return s.ContentType
	}
	return DefaultContentType
}
