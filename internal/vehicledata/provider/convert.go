package provider

import (
	"strings"
)

func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optInt(i int) *int {
	if i <= 0 {
		return nil
	}
	return &i
}

func optFloat(f float64) *float64 {
	if f <= 0 {
		return nil
	}
	return &f
}
