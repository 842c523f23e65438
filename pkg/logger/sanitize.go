package logger

import (
	"io"
	"regexp"
)

const redacted = "***REDACTED***"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
	regexp.MustCompile(`sk-ant-[0-9A-Za-z_\-]{20,}`),
	// 긴 토큰 (40자 이상 base64/hex 계열)
	regexp.MustCompile(`[0-9A-Za-z_\-]{40,}`),
}

// Sanitize masks API keys and long opaque tokens in s
func Sanitize(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, redacted)
	}
	return s
}

// SanitizingWriter masks secrets in every write before passing it on
type SanitizingWriter struct {
	out io.Writer
}

// NewSanitizingWriter wraps w
func NewSanitizingWriter(w io.Writer) *SanitizingWriter {
	return &SanitizingWriter{out: w}
}

// Write implements io.Writer. The returned count refers to p, not the masked output.
func (s *SanitizingWriter) Write(p []byte) (int, error) {
	masked := p
	for _, pat := range secretPatterns {
		masked = pat.ReplaceAll(masked, []byte(redacted))
	}
	if _, err := s.out.Write(masked); err != nil {
		return 0, err
	}
	return len(p), nil
}
