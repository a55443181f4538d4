package logger

import (
	"io"
	"regexp"
	"sync"
)

const redacted = "[REDACTED]"

// minSecretLen keeps short placeholder values from masking ordinary words
const minSecretLen = 8

// defaultRules cover the credentials relay handles: provider keys, the headers
// they travel in, and key-like fields in JSON payloads.
var defaultRules = []*regexp.Regexp{
	// Anthropic and OpenAI keys, including project keys
	regexp.MustCompile(`sk-(?:ant-|proj-)?[A-Za-z0-9_-]{20,}`),
	// Authorization: Bearer <token>
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`),
	// x-api-key header as logged or dumped
	regexp.MustCompile(`(?i)x-api-key["\s:=]+[^\s",]+`),
	// "api_key": "...", api_key=... as in ai.profiles
	regexp.MustCompile(`(?i)"?api_?key"?\s*[:=]\s*"?[^\s",}]+"?`),
	// password, secret and token fields
	regexp.MustCompile(`(?i)(?:password|secret|token)"?\s*[:=]\s*"?[^\s",}]+"?`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
}

// Redactor masks credentials in log output. Rules may be added while it is in use.
type Redactor struct {
	mu    sync.RWMutex
	rules []*regexp.Regexp
}

// NewRedactor returns a redactor with the default rules
func NewRedactor() *Redactor {
	return &Redactor{rules: append([]*regexp.Regexp(nil), defaultRules...)}
}

// AddPattern adds a regular expression whose matches are masked
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.add(re)
	return nil
}

// AddSecret masks every literal occurrence of value, such as a configured provider
// key. Values shorter than eight characters are ignored.
func (r *Redactor) AddSecret(value string) {
	if len(value) < minSecretLen {
		return
	}
	r.add(regexp.MustCompile(regexp.QuoteMeta(value)))
}

// Redact returns s with every match masked
func (r *Redactor) Redact(s string) string {
	return string(r.redact([]byte(s)))
}

// Wrap returns a writer that masks matches before writing to w
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{out: w, r: r}
}

func (r *Redactor) add(re *regexp.Regexp) {
	r.mu.Lock()
	r.rules = append(r.rules, re)
	r.mu.Unlock()
}

func (r *Redactor) redact(p []byte) []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := p
	for _, re := range r.rules {
		out = re.ReplaceAllLiteral(out, []byte(redacted))
	}
	return out
}

type redactingWriter struct {
	out io.Writer
	r   *Redactor
}

// Write reports len(p) on success even though masking changes the bytes written
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.out.Write(w.r.redact(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}
