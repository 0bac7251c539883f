package middleware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities for the HTTP surface.

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateTenantID validates the {tenant} path parameter format.
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if !tenantIDPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateCorrelationID validates the {correlation_id} path parameter,
// accepting the uuid.NewString() format the Orchestrator generates.
func ValidateCorrelationID(id string) error {
	if id == "" {
		return fmt.Errorf("correlation ID cannot be empty")
	}
	pattern := `^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`
	matched, _ := regexp.MatchString(pattern, id)
	if !matched {
		return fmt.Errorf("invalid correlation ID format")
	}
	return nil
}

// ValidateProjectPath rejects path traversal and shell-metacharacter
// payloads in a submitted project_path before it ever reaches the Scanner
// Set (spec §4.1: the ignored-path set is not a security boundary by itself).
func ValidateProjectPath(path string) error {
	if path == "" {
		return nil
	}
	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return fmt.Errorf("path traversal detected")
	}
	blocked := []string{"/etc", "/proc", "/sys", "/dev", "/root", "/var", "/boot"}
	for _, b := range blocked {
		if strings.HasPrefix(cleaned, b) {
			return fmt.Errorf("access to %s is not allowed", b)
		}
	}
	dangerous := []string{"$(", "`", "&", "|", ";", "\n", "\r", "&&", "||"}
	for _, d := range dangerous {
		if strings.Contains(path, d) {
			return fmt.Errorf("invalid characters in path")
		}
	}
	return nil
}

// SanitizeString strips null bytes and non-printable control characters.
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateLimit clamps a pagination limit to [1, 100], defaulting to 20.
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
