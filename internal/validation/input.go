package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinFullNameLength = 2
	MaxFullNameLength = 100
	MinPasswordLength = 8
	MaxPasswordLength = 72
	MinBriefingLength = 5
	MaxBriefingLength = 5000
	MinMessageLength  = 1
	MaxMessageLength  = 5000
	MinAmount         = 0.0
	MaxAmount         = 10000000.0
	MaxURLLength      = 500
)

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateLength проверяет длину строки в рунах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) > 254 {
		return fmt.Errorf("email слишком длинный")
	}
	if !emailRegexp.MatchString(email) {
		return fmt.Errorf("некорректный формат email")
	}
	return nil
}

// ValidatePassword проверяет минимальные требования к паролю.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("пароль обязателен")
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("пароль должен быть не менее %d символов", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("пароль должен быть не более %d символов", MaxPasswordLength)
	}
	return nil
}

// ValidateFullName проверяет отображаемое имя.
func ValidateFullName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("имя обязательно")
	}
	return ValidateLength("имя", name, MinFullNameLength, MaxFullNameLength)
}

// ValidateBriefing проверяет текст брифа заказа.
func ValidateBriefing(briefing string) error {
	if strings.TrimSpace(briefing) == "" {
		return fmt.Errorf("бриф обязателен")
	}
	return ValidateLength("бриф", briefing, MinBriefingLength, MaxBriefingLength)
}

// ValidateAmount проверяет сумму заказа.
func ValidateAmount(amount float64) error {
	if amount <= MinAmount {
		return fmt.Errorf("сумма должна быть положительной")
	}
	if amount > MaxAmount {
		return fmt.Errorf("сумма превышает допустимый максимум")
	}
	return nil
}

// ValidateMessageContent проверяет текст сообщения чата.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("текст сообщения не может быть пустым")
	}
	return ValidateLength("сообщение", content, MinMessageLength, MaxMessageLength)
}

// ValidateURL проверяет, что строка является абсолютным http(s) URL.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("ссылка обязательна")
	}
	if len(raw) > MaxURLLength {
		return fmt.Errorf("ссылка слишком длинная")
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("некорректная ссылка")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("ссылка должна начинаться с http или https")
	}
	return nil
}
