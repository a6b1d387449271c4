package validation

import (
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"user@example.com",
		"maria.silva+promo@sub.example.com.br",
		"  USER@EXAMPLE.COM  ", // нормализуется перед проверкой
	}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Fatalf("email %q должен проходить: %v", email, err)
		}
	}

	invalid := []string{
		"",
		"plainaddress",
		"@example.com",
		"user@",
		"user@example",
		strings.Repeat("a", 250) + "@example.com",
	}
	for _, email := range invalid {
		if err := ValidateEmail(email); err == nil {
			t.Fatalf("email %q должен отклоняться", email)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("demo1234"); err != nil {
		t.Fatalf("пароль минимальной длины должен проходить: %v", err)
	}
	for _, password := range []string{"", "short", strings.Repeat("x", MaxPasswordLength+1)} {
		if err := ValidatePassword(password); err == nil {
			t.Fatalf("пароль %q должен отклоняться", password)
		}
	}
}

func TestValidateLengthCountsRunes(t *testing.T) {
	// Кириллица: 6 рун, 12 байт.
	if err := ValidateLength("имя", "Привет", 6, 6); err != nil {
		t.Fatalf("длина должна считаться в рунах: %v", err)
	}
}

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://instagram.com/p/abc123",
		"http://example.com/post?id=1",
	}
	for _, raw := range valid {
		if err := ValidateURL(raw); err != nil {
			t.Fatalf("ссылка %q должна проходить: %v", raw, err)
		}
	}

	invalid := []string{
		"",
		"   ",
		"not-a-url",
		"ftp://example.com/file",
		"javascript:alert(1)",
		"https://" + strings.Repeat("a", MaxURLLength) + ".com",
	}
	for _, raw := range invalid {
		if err := ValidateURL(raw); err == nil {
			t.Fatalf("ссылка %q должна отклоняться", raw)
		}
	}
}

func TestValidateBriefingAndMessage(t *testing.T) {
	if err := ValidateBriefing("Расскажите о новой коллекции."); err != nil {
		t.Fatalf("бриф должен проходить: %v", err)
	}
	if err := ValidateBriefing("   "); err == nil {
		t.Fatalf("пустой бриф должен отклоняться")
	}
	if err := ValidateBriefing("аб"); err == nil {
		t.Fatalf("слишком короткий бриф должен отклоняться")
	}

	if err := ValidateMessageContent("Привет!"); err != nil {
		t.Fatalf("сообщение должно проходить: %v", err)
	}
	if err := ValidateMessageContent(strings.Repeat("а", MaxMessageLength+1)); err == nil {
		t.Fatalf("слишком длинное сообщение должно отклоняться")
	}
}

func TestValidateAmount(t *testing.T) {
	if err := ValidateAmount(150); err != nil {
		t.Fatalf("положительная сумма должна проходить: %v", err)
	}
	for _, amount := range []float64{0, -1, MaxAmount + 1} {
		if err := ValidateAmount(amount); err == nil {
			t.Fatalf("сумма %.2f должна отклоняться", amount)
		}
	}
}
