package feed

import "strings"

// Substitution replaces Old with New.
type Substitution struct {
	Old string
	New string
}

// Substitutions is the ordered table EncodeURL applies. The order is part of
// the stored encoded_url format: changing it changes every key.
var Substitutions = []Substitution{
	{"/", "%2F"},
	{":", "%3A"},
	{" ", "%20"},
	{"?", "%3F"},
	{"&", "%26"},
	{"=", "%3D"},
	{"#", "%23"},
}

// EncodeURL escapes rawURL with Substitutions and prefixes proxyBase.
func EncodeURL(rawURL, proxyBase string) string {
	out := rawURL
	for _, s := range Substitutions {
		out = strings.ReplaceAll(out, s.Old, s.New)
	}
	return proxyBase + out
}
