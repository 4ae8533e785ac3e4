package enum

type EmailClassification string

const (
	EmailAutoResponder      EmailClassification = "auto_responder"
	EmailBounceNotification EmailClassification = "bounce_notification"
	EmailBulk               EmailClassification = "bulk_email"
	EmailOK                 EmailClassification = "ok"
)

func (t EmailClassification) String() string {
	return string(t)
}

// Automated reports whether the message was generated by software rather than a person.
func (t EmailClassification) Automated() bool {
	return t != EmailOK && t != ""
}
