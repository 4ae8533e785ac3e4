package utils

import (
	"strings"
)

func ExtractDomainFromEmail(email string) string {
	if email == "" {
		return ""
	}

	email = strings.TrimSpace(email)

	// Handle potential angle brackets in email (e.g., "Name <email@domain.com>")
	if strings.Contains(email, "<") && strings.Contains(email, ">") {
		startIdx := strings.LastIndex(email, "<") + 1
		endIdx := strings.LastIndex(email, ">")
		if startIdx > 0 && endIdx > startIdx {
			email = email[startIdx:endIdx]
		}
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// ReplySubject prefixes the trimmed original subject, substituting a placeholder when it is blank.
func ReplySubject(original string) string {
	subject := strings.TrimSpace(original)
	if subject == "" {
		subject = "No Subject"
	}
	return "Re: " + subject
}
