package utils

import (
	"strconv"
	"strings"
)

// ValidateMessage trims a reminder message and rejects blank input.
func ValidateMessage(msg string) (string, error) {
	trimmed := strings.TrimSpace(msg)
	if trimmed == "" {
		return "", ErrEmptyMessage()
	}
	return trimmed, nil
}

// ParseID parses a reminder id argument.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, ValidationError("invalid reminder id: %s", s)
	}
	return id, nil
}

// ParseIDList parses ids given either as separate args or comma-separated.
func ParseIDList(args []string) ([]int64, error) {
	var ids []int64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := ParseID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
