// Package messages holds the human-readable templates used in diagnostic
// log lines, keyed by message id and localised with golang.org/x/text.
package messages

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	NotificationSending = "notification.sending"
	NotificationSuccess = "notification.success"
	NotificationFailure = "notification.failure"
	NotificationError   = "notification.error"
	RequestCreated      = "request.created"
	SaveSuccess         = "save.success"
	ErrorURLNull        = "error.url.null"
	ErrorMethodNull     = "error.method.null"
	AttemptFailed       = "attempt.failed"
	ResponseNonSuccess  = "response.non_success"
)

// Catalog formats a message id with printf-style arguments.
type Catalog interface {
	Sprintf(key string, args ...any) string
}

var templates = map[language.Tag]map[string]string{
	language.English: {
		NotificationSending: "Sending notification with trigger: %s",
		NotificationSuccess: "Notification sent successfully",
		NotificationFailure: "Notification could not be sent",
		NotificationError:   "Error sending notification: %s",
		RequestCreated:      "Request created with method %s for %s",
		SaveSuccess:         "Request saved to the request log",
		ErrorURLNull:        "The url must not be null",
		ErrorMethodNull:     "The method must not be null",
		AttemptFailed:       "Attempt %d failed: %s",
		ResponseNonSuccess:  "Received non-success response: %d",
	},
	language.Spanish: {
		NotificationSending: "Enviando notificación con disparador: %s",
		NotificationSuccess: "Notificación enviada correctamente",
		NotificationFailure: "No se pudo enviar la notificación",
		NotificationError:   "Error al enviar la notificación: %s",
		RequestCreated:      "Solicitud creada con método %s para %s",
		SaveSuccess:         "Solicitud guardada en el registro",
		ErrorURLNull:        "La url no puede ser nula",
		ErrorMethodNull:     "El método no puede ser nulo",
		AttemptFailed:       "Intento %d fallido: %s",
		ResponseNonSuccess:  "Respuesta no exitosa recibida: %d",
	},
}

var (
	builder = newBuilder()
	matcher = language.NewMatcher([]language.Tag{language.English, language.Spanish})
)

func newBuilder() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, entries := range templates {
		for key, msg := range entries {
			if err := b.SetString(tag, key, msg); err != nil {
				panic("messages: " + err.Error())
			}
		}
	}
	return b
}

type printerCatalog struct {
	printer *message.Printer
}

// New returns a catalog for the closest supported language. Unsupported
// tags fall back to English; unknown keys are formatted as-is.
func New(tag language.Tag) Catalog {
	matched, _, _ := matcher.Match(tag)
	base, _ := matched.Base()
	return &printerCatalog{
		printer: message.NewPrinter(language.Make(base.String()), message.Catalog(builder)),
	}
}

// Parse resolves a locale string such as "es-ES"; invalid input yields English.
func Parse(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	return tag
}

func (c *printerCatalog) Sprintf(key string, args ...any) string {
	return c.printer.Sprintf(key, args...)
}
