package validation

import (
	"strings"
	"testing"

	"contextdb/pkg/models"
)

func TestValidateRecord_DefaultRules(t *testing.T) {
	SetRules(Rules{})

	if err := ValidateRecord(models.MessageRecord{Text: "hello"}); err != nil {
		t.Fatalf("minimal record should pass: %v", err)
	}
	if err := ValidateRecord(models.MessageRecord{Sender: "user"}); err == nil {
		t.Fatal("empty text must be rejected")
	}
}

func TestValidateRecord_ConfiguredRules(t *testing.T) {
	SetRules(Rules{
		RequireSender: true,
		MaxTextLen:    10,
		SenderEnum:    []string{"user", "assistant"},
	})
	defer SetRules(Rules{})

	if err := ValidateRecord(models.MessageRecord{Sender: "user", Text: "ok"}); err != nil {
		t.Fatalf("conforming record should pass: %v", err)
	}
	if err := ValidateRecord(models.MessageRecord{Text: "ok"}); err == nil {
		t.Fatal("missing sender must be rejected when required")
	}
	if err := ValidateRecord(models.MessageRecord{Sender: "user", Text: "way too long for the cap"}); err == nil {
		t.Fatal("oversize text must be rejected")
	}
	if err := ValidateRecord(models.MessageRecord{Sender: "system", Text: "ok"}); err == nil {
		t.Fatal("sender outside the enum must be rejected")
	}

	// violations are reported together
	err := ValidateRecord(models.MessageRecord{Sender: "system", Text: ""})
	if err == nil || !strings.Contains(err.Error(), ";") {
		t.Fatalf("expected joined violations, got %v", err)
	}
}
