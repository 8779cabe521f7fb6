// Package classifier labels extracted text as prose, code or a mix of both
// and segments the code-like runs into blocks. The live pipeline and the
// document path share it.
package classifier

import (
	"regexp"
	"strings"

	"github.com/anime-shed/ocr-camera-go/pkg/models"
)

const (
	codeRatioThreshold  = 0.7
	mixedRatioThreshold = 0.2

	unknownLanguage = "unknown"
)

type languagePattern struct {
	language string
	re       *regexp.Regexp
}

// Order matters: the first matching entry names a line's language.
var languagePatterns = []languagePattern{
	{"python", regexp.MustCompile(`(?i)(def |class |import |from |if __name__|print\()`)},
	{"javascript", regexp.MustCompile(`(?i)(function |const |let |var |=>|console\.log)`)},
	{"java", regexp.MustCompile(`(?i)(public class|private |protected |void |System\.out)`)},
	{"cpp", regexp.MustCompile(`(?i)(#include|int main\(|std::|cout|cin)`)},
	{"sql", regexp.MustCompile(`(?i)(SELECT |INSERT |UPDATE |DELETE |FROM |WHERE )`)},
	{"html", regexp.MustCompile(`(?i)(<html|<div|<body|<head|<script)`)},
	{"css", regexp.MustCompile(`(?i)(\{[^}]*:[^}]*\}|@media|\.[\w-]+\s*\{)`)},
}

// Result bundles both verdicts computed from one scan.
type Result struct {
	ContentType models.ContentType
	CodeRatio   float64
	TotalLines  int
	CodeBlocks  []models.CodeBlock
}

// Classify returns text, code or mixed.
func Classify(text string) models.ContentType {
	return Analyze(text).ContentType
}

// ExtractCodeBlocks returns the code-like runs of text in order.
func ExtractCodeBlocks(text string) []models.CodeBlock {
	return Analyze(text).CodeBlocks
}

// Analyze scans text once. Trailing empty lines are not counted.
func Analyze(text string) Result {
	lines := splitLines(text)
	res := Result{ContentType: models.ContentText, TotalLines: len(lines)}
	if len(lines) == 0 {
		return res
	}

	var (
		current  []string
		start    int
		language string
	)
	flush := func(end int) {
		if len(current) == 0 {
			return
		}
		if language == "" {
			language = unknownLanguage
		}
		res.CodeBlocks = append(res.CodeBlocks, models.CodeBlock{
			Code:      strings.Join(current, "\n"),
			Language:  language,
			LineStart: start + 1,
			LineEnd:   end,
		})
		current, language = nil, ""
	}

	for i, line := range lines {
		lang, matched := matchLanguage(line)
		if !matched && !isIndentedCode(line) {
			flush(i)
			continue
		}
		if len(current) == 0 {
			start = i
		}
		if language == "" && matched {
			language = lang
		}
		current = append(current, line)
	}
	flush(len(lines))

	codeLines := 0
	for _, b := range res.CodeBlocks {
		codeLines += b.LineEnd - b.LineStart + 1
	}
	res.CodeRatio = float64(codeLines) / float64(len(lines))

	switch {
	case res.CodeRatio > codeRatioThreshold:
		res.ContentType = models.ContentCode
	case res.CodeRatio > mixedRatioThreshold:
		res.ContentType = models.ContentMixed
	}
	return res
}

func matchLanguage(line string) (string, bool) {
	for _, p := range languagePatterns {
		if p.re.MatchString(line) {
			return p.language, true
		}
	}
	return "", false
}

func isIndentedCode(line string) bool {
	return (strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t")) && strings.TrimSpace(line) != ""
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
