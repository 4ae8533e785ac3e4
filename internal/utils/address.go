package utils

import (
	netmail "net/mail"
	"strings"

	"github.com/emersion/go-message/mail"
	"github.com/pkg/errors"

	"github.com/customeros/mailresponder/dto"
	mailerrors "github.com/customeros/mailresponder/errors"
)

// ParseAddressList extracts the mailboxes of an address header such as From, To or Cc.
// The returned list is always usable: it holds every entry with an "@" address in header order.
// A non-nil error wrapping ErrParse reports entries that were dropped.
func ParseAddressList(raw string) (dto.AddressList, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return dto.AddressList{}, nil
	}

	if parsed, err := mail.ParseAddressList(raw); err == nil {
		return collectAddresses(parsed)
	}

	// One bad entry fails the whole list, so fall back to parsing entries one at a time.
	list := dto.AddressList{}
	var dropped []string
	for _, entry := range SplitAddressList(raw) {
		addr, err := mail.ParseAddress(entry)
		if err != nil || !strings.Contains(addr.Address, "@") {
			dropped = append(dropped, entry)
			continue
		}
		list = append(list, netmail.Address(*addr))
	}

	if len(dropped) > 0 {
		return list, errors.Wrapf(mailerrors.ErrParse, "dropped %d entries %q", len(dropped), dropped)
	}
	return list, nil
}

func collectAddresses(parsed []*mail.Address) (dto.AddressList, error) {
	list := make(dto.AddressList, 0, len(parsed))
	var dropped []string
	for _, addr := range parsed {
		if addr == nil {
			continue
		}
		if !strings.Contains(addr.Address, "@") {
			dropped = append(dropped, addr.Address)
			continue
		}
		list = append(list, netmail.Address(*addr))
	}

	if len(dropped) > 0 {
		return list, errors.Wrapf(mailerrors.ErrParse, "dropped %d entries %q", len(dropped), dropped)
	}
	return list, nil
}

// SplitAddressList splits a header value on the commas that separate mailboxes,
// ignoring commas inside quoted strings, comments and angle brackets. Blank entries are skipped.
func SplitAddressList(raw string) []string {
	var (
		entries      []string
		current      strings.Builder
		inQuote      bool
		escaped      bool
		angleDepth   int
		commentDepth int
	)

	flush := func() {
		entry := strings.TrimSpace(current.String())
		if entry != "" {
			entries = append(entries, entry)
		}
		current.Reset()
	}

	for _, r := range raw {
		if escaped {
			escaped = false
			current.WriteRune(r)
			continue
		}

		switch {
		case r == '\\' && (inQuote || commentDepth > 0):
			escaped = true
		case r == '"' && commentDepth == 0:
			inQuote = !inQuote
		case inQuote:
		case r == '(':
			commentDepth++
		case r == ')' && commentDepth > 0:
			commentDepth--
		case commentDepth > 0:
		case r == '<':
			angleDepth++
		case r == '>' && angleDepth > 0:
			angleDepth--
		case r == ',' && angleDepth == 0:
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()

	return entries
}
