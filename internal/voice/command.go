// Package voice turns recognized utterances into commands: an alias table
// for parsing and a wake-word state machine that gates destructive commands
// behind a spoken confirmation.
package voice

import "strings"

// Kind identifies a voice command.
type Kind string

const (
	KindHelp           Kind = "help"
	KindMute           Kind = "mute"
	KindUnmute         Kind = "unmute"
	KindVerbosityAll   Kind = "all"
	KindVerbosityLess  Kind = "less"
	KindReportFaces    Kind = "faces"
	KindReportScan     Kind = "scan"
	KindReportDistance Kind = "distance"
	KindSaveFace       Kind = "save_face"
	KindStop           Kind = "stop"
	KindCurrencyMode   Kind = "currency"
	KindEmergency      Kind = "emergency"
)

// Command is a resolved voice command. Stop and Emergency are destructive
// and carry RequiresConfirmation; the interpreter will not execute them
// without an affirmative follow-up.
type Command struct {
	Kind                 Kind
	RequiresConfirmation bool
	RawText              string
}

// aliases maps spoken phrases to command kinds. Single-word phrases match
// whole words only; multi-word phrases match as substrings. Order matters:
// more specific phrases come before ones they could shadow ("save face"
// before "faces").
var aliases = []struct {
	phrase string
	kind   Kind
}{
	{"save face", KindSaveFace},
	{"unmute", KindUnmute},
	{"speak", KindUnmute},
	{"mute", KindMute},
	{"help", KindHelp},
	{"all", KindVerbosityAll},
	{"less", KindVerbosityLess},
	{"faces", KindReportFaces},
	{"scan", KindReportScan},
	{"distance", KindReportDistance},
	{"stop", KindStop},
	{"currency", KindCurrencyMode},
	{"emergency", KindEmergency},
}

var confirmable = map[Kind]bool{
	KindStop:      true,
	KindEmergency: true,
}

// Kinds returns every spoken command phrase, for the help announcement.
func Kinds() []string {
	out := make([]string, 0, len(aliases))
	seen := make(map[Kind]bool)
	for _, a := range aliases {
		if seen[a.kind] {
			continue
		}
		seen[a.kind] = true
		out = append(out, a.phrase)
	}
	return out
}

// Parse matches recognized text against the alias table. Returns false for
// text that does not contain any known command phrase.
func Parse(text string) (Command, bool) {
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return Command{}, false
	}

	words := make(map[string]bool)
	for _, w := range strings.Fields(msg) {
		words[w] = true
	}

	for _, a := range aliases {
		matched := false
		if strings.Contains(a.phrase, " ") {
			matched = strings.Contains(msg, a.phrase)
		} else {
			matched = words[a.phrase]
		}
		if matched {
			return Command{
				Kind:                 a.kind,
				RequiresConfirmation: confirmable[a.kind],
				RawText:              text,
			}, true
		}
	}
	return Command{}, false
}

// Description returns a spoken-friendly name for the command kind.
func (k Kind) Description() string {
	switch k {
	case KindHelp:
		return "help"
	case KindMute:
		return "mute"
	case KindUnmute:
		return "unmute"
	case KindVerbosityAll:
		return "announce all objects"
	case KindVerbosityLess:
		return "announce fewer objects"
	case KindReportFaces:
		return "report faces"
	case KindReportScan:
		return "report scan"
	case KindReportDistance:
		return "report distance"
	case KindSaveFace:
		return "save face"
	case KindStop:
		return "stop"
	case KindCurrencyMode:
		return "currency mode"
	case KindEmergency:
		return "emergency"
	default:
		return string(k)
	}
}
