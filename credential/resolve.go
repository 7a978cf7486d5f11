package credential

// Source names where a resolved credential came from.
type Source string

const (
	SourceNone    Source = "none"
	SourcePerCall Source = "per_call"
	SourceAmbient Source = "ambient"
	SourceDefault Source = "default"
)

// Resolve picks the credential for one outbound call: the per-call token,
// then the ambient token, then the process default. Empty values are skipped.
// When none is set, ok is false and no Authorization header should be sent.
func Resolve(perCall, ambient, fallback string) (token string, source Source, ok bool) {
	switch {
	case perCall != "":
		return perCall, SourcePerCall, true
	case ambient != "":
		return ambient, SourceAmbient, true
	case fallback != "":
		return fallback, SourceDefault, true
	}
	return "", SourceNone, false
}
