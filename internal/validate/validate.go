package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"loadctl/internal/services"
)

// MaxFilenameLength bounds script names accepted by ValidateFilename.
const MaxFilenameLength = 50

var (
	filenamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	ipv4Pattern   = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})(:\d{1,5})?(/\S*)?$`)
	urlPattern    = regexp.MustCompile(`^(?i:https?)://([A-Za-z0-9]([A-Za-z0-9.-]*[A-Za-z0-9])?)(:\d{1,5})?(/\S*)?$`)
	domainPattern = regexp.MustCompile(`^([A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?\.)+[A-Za-z]{2,63}(:\d{1,5})?(/\S*)?$`)
	localPattern  = regexp.MustCompile(`^(?i:localhost|127\.0\.0\.1)(:\d{1,5})?(/\S*)?$`)

	leadingQuadPattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)
	loopbackPrefix     = regexp.MustCompile(`^(?i:localhost|127\.0\.0\.1)([:/]|$)`)
	schemePattern      = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.-]*)://`)
)

const forbiddenHostChars = "<>\"{}|\\^`[]"

// ScriptDescriptor is the filename and host chosen for a generated script.
type ScriptDescriptor struct {
	Filename string
	Host     string
}

// ValidateFilename returns "" when name is usable as a script name.
func ValidateFilename(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Filename is required"
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return "Filename must not contain spaces"
	}
	if !filenamePattern.MatchString(name) {
		return "Filename may only contain letters, numbers, underscores and hyphens"
	}
	if len(name) > MaxFilenameLength {
		return fmt.Sprintf("Filename must be %d characters or fewer", MaxFilenameLength)
	}
	return ""
}

// ValidateHost returns "" when host is an acceptable target for generated
// scripts.
func ValidateHost(host string) string {
	trimmed := strings.TrimSpace(host)
	if trimmed == "" {
		return "Host is required"
	}
	if strings.ContainsAny(trimmed, forbiddenHostChars) {
		return "Host contains invalid characters"
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return "Host must not contain spaces"
	}

	rest := trimmed
	if m := schemePattern.FindStringSubmatch(trimmed); m != nil {
		scheme := strings.ToLower(m[1])
		if scheme != "http" && scheme != "https" {
			return "Host scheme must be http or https"
		}
		rest = trimmed[len(m[0]):]
	}
	if strings.Contains(rest, "//") {
		return "Host contains an unexpected double slash"
	}

	switch {
	case matchIPv4(trimmed):
		return ""
	case urlPattern.MatchString(trimmed):
		return ""
	case domainPattern.MatchString(trimmed):
		return ""
	case localPattern.MatchString(trimmed):
		return ""
	}
	return "Host must be an IPv4 address, an http(s) URL, a domain name or localhost"
}

func matchIPv4(host string) bool {
	m := ipv4Pattern.FindStringSubmatch(host)
	if m == nil {
		return false
	}
	for _, octet := range m[1:5] {
		n, err := strconv.Atoi(octet)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

// NormalizeHost prefixes a scheme onto an already validated host. Hosts with
// an http or https scheme are returned unchanged; loopback and IPv4 hosts get
// http://, everything else https://.
func NormalizeHost(host string) string {
	trimmed := strings.TrimSpace(host)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return trimmed
	}
	if loopbackPrefix.MatchString(trimmed) || leadingQuadPattern.MatchString(trimmed) {
		return "http://" + trimmed
	}
	return "https://" + trimmed
}

// Check validates both fields of desc and reports the first failure as a
// services.ErrValidation error.
func Check(desc ScriptDescriptor) error {
	if msg := ValidateFilename(desc.Filename); msg != "" {
		return services.Wrap(services.ErrValidation, "validate", "filename", msg, nil)
	}
	if msg := ValidateHost(desc.Host); msg != "" {
		return services.Wrap(services.ErrValidation, "validate", "host", msg, nil)
	}
	return nil
}
