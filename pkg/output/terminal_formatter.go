package output

import (
	"fmt"
	"io"
	"mime"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/quick"
	"github.com/niels/sparrow/pkg/listener"
)

// ANSI color codes
const (
	ColorReset       = "\033[0m"
	ColorRed         = "\033[31m"
	ColorGreen       = "\033[32m"
	ColorYellow      = "\033[33m"
	ColorCyan        = "\033[36m"
	ColorBoldBlue    = "\033[1;34m"
	ColorBoldMagenta = "\033[1;35m"
	ColorBoldCyan    = "\033[1;36m"
)

// DefaultWidth is the width of separator lines
const DefaultWidth = 60

// MaxBodyPreview is the number of body bytes shown in a dump
const MaxBodyPreview = 4096

// TerminalFormatter renders requests for terminal output
type TerminalFormatter struct {
	useColor bool
	width    int
}

// NewTerminalFormatter creates a new terminal formatter
func NewTerminalFormatter(useColor bool) *TerminalFormatter {
	return &TerminalFormatter{
		useColor: useColor,
		width:    DefaultWidth,
	}
}

// FormatRequest renders the request line and headers. With sortHeaders the
// headers are listed alphabetically instead of in arrival order.
func (f *TerminalFormatter) FormatRequest(req *listener.Request, sortHeaders bool) string {
	var sb strings.Builder

	sb.WriteString(f.colorizeText(strings.Repeat("-", f.width), ColorBoldBlue))
	sb.WriteString("\n")
	sb.WriteString(f.colorizeText(req.HTTPMethod(), f.methodColor(req.HTTPMethod())))
	sb.WriteString(" ")
	sb.WriteString(f.colorizeText(req.Path(), ColorBoldCyan))
	sb.WriteString(" ")
	sb.WriteString(req.Protocol())
	if addr := req.RemoteAddr(); addr != "" {
		sb.WriteString(f.colorizeText("  from "+addr, ColorYellow))
	}
	sb.WriteString("\n")

	type field struct{ name, value string }
	var fields []field
	req.Headers().Each(func(name, value string) {
		fields = append(fields, field{name, value})
	})
	if sortHeaders {
		sort.SliceStable(fields, func(i, j int) bool {
			return strings.ToLower(fields[i].name) < strings.ToLower(fields[j].name)
		})
	}
	for _, h := range fields {
		sb.WriteString(f.colorizeText(h.name, ColorBoldMagenta))
		sb.WriteString(": ")
		sb.WriteString(h.value)
		sb.WriteString("\n")
	}

	if n := req.ContentLength(); n > 0 {
		sb.WriteString(f.colorizeText(fmt.Sprintf("(%d byte body)", n), ColorCyan))
		sb.WriteString("\n")
	}
	return sb.String()
}

// WriteBody writes a preview of body to w, highlighted by content type when
// color is enabled. Binary bodies are summarised instead of printed.
func (f *TerminalFormatter) WriteBody(w io.Writer, body []byte, contentType string) error {
	if len(body) == 0 {
		return nil
	}

	truncated := false
	if len(body) > MaxBodyPreview {
		body = body[:MaxBodyPreview]
		truncated = true
	}

	if !utf8.Valid(body) {
		_, err := fmt.Fprintf(w, "%s\n", f.colorizeText(fmt.Sprintf("<%d bytes of binary data>", len(body)), ColorYellow))
		return err
	}

	text := string(body)
	if err := f.highlight(w, text, contentType); err != nil {
		if _, err := io.WriteString(w, text); err != nil {
			return err
		}
	}
	if !strings.HasSuffix(text, "\n") {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	if truncated {
		_, err := fmt.Fprintf(w, "%s\n", f.colorizeText("... (truncated)", ColorYellow))
		return err
	}
	return nil
}

// LexerFor returns the chroma lexer name for a content type, or "" if none matches
func LexerFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		return ""
	}
	lexer := lexers.MatchMimeType(mediaType)
	if lexer == nil {
		return ""
	}
	return lexer.Config().Name
}

func (f *TerminalFormatter) highlight(w io.Writer, text, contentType string) error {
	language := LexerFor(contentType)
	if !f.useColor || language == "" {
		_, err := io.WriteString(w, text)
		return err
	}
	return quick.Highlight(w, text, language, "terminal16m", "monokai")
}

func (f *TerminalFormatter) methodColor(method string) string {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return ColorGreen
	case "DELETE":
		return ColorRed
	default:
		return ColorYellow
	}
}

// colorizeText adds color to text if color is enabled
func (f *TerminalFormatter) colorizeText(text string, colorCode string) string {
	if !f.useColor || colorCode == "" {
		return text
	}
	return fmt.Sprintf("%s%s%s", colorCode, text, ColorReset)
}
