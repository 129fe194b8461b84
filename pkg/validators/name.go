package validators

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameLength = 100

var (
	ErrNameEmpty   = errors.New("no name provided")
	ErrNameTooLong = errors.New("name is too long")
	ErrNameInvalid = errors.New("name contains invalid characters")
)

func NameValidator(n string) error {
	if strings.TrimSpace(n) == "" {
		return ErrNameEmpty
	}

	if !utf8.ValidString(n) || strings.IndexFunc(n, unicode.IsControl) >= 0 {
		return ErrNameInvalid
	}

	if utf8.RuneCountInString(n) > maxNameLength {
		return ErrNameTooLong
	}

	return nil
}
