package validation

import (
	"errors"
	"fmt"
	"strings"

	"contextdb/pkg/models"
)

// Rules describes configurable constraints applied to inbound message
// records before they are persisted. All fields are optional.
type Rules struct {
	RequireSender bool
	MaxTextLen    int
	MaxSenderLen  int
	SenderEnum    []string
}

var rules Rules

// SetRules installs the global rule set, typically once at startup from the
// effective config.
func SetRules(r Rules) { rules = r }

// ValidateRecord checks a message record against the installed rules.
func ValidateRecord(m models.MessageRecord) error {
	var errs []string
	if m.Text == "" {
		errs = append(errs, "text is required")
	}
	if rules.RequireSender && m.Sender == "" {
		errs = append(errs, "sender is required")
	}
	if rules.MaxTextLen > 0 && len(m.Text) > rules.MaxTextLen {
		errs = append(errs, fmt.Sprintf("text too long: %d > %d", len(m.Text), rules.MaxTextLen))
	}
	if rules.MaxSenderLen > 0 && len(m.Sender) > rules.MaxSenderLen {
		errs = append(errs, fmt.Sprintf("sender too long: %d > %d", len(m.Sender), rules.MaxSenderLen))
	}
	if len(rules.SenderEnum) > 0 && m.Sender != "" && !contains(rules.SenderEnum, m.Sender) {
		errs = append(errs, "invalid sender")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
