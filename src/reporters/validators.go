package reporters

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ValidatorFunc checks one user-supplied constructor parameter before a
// reporter is instantiated.
type ValidatorFunc func(raw string) error

func ValidateYear(raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return errors.New("year is required")
	}
	if _, err := strconv.Atoi(text); err != nil {
		return errors.New("year must be an integer")
	}
	return nil
}

func ValidateAmount(raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return errors.New("amount is required")
	}
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return errors.New("amount must be a number")
	}
	return nil
}

func ValidateQueryID(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("query ID is required")
	}
	return nil
}

func ValidateToken(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("token is required")
	}
	return nil
}

// ValidateFilePath returns a validator accepting an existing file with the
// given extension.
func ValidateFilePath(extension string) ValidatorFunc {
	return func(raw string) error {
		text := strings.TrimSpace(raw)
		if text == "" {
			return errors.New("this field is required")
		}
		info, err := os.Stat(text)
		if err != nil || info.IsDir() {
			return errors.New("path must be a file")
		}
		if !strings.EqualFold(filepath.Ext(text), extension) {
			return fmt.Errorf("only %s files are supported", extension)
		}
		return nil
	}
}
