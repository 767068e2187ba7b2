package redact

import "regexp"

// escapedQuote matches a JSON quote that may be backslash escaped once or twice,
// as happens when a logged body is itself embedded in a quoted log line.
const escapedQuote = `\\{0,3}"`

// JSONDigits redacts a numeric JSON string value, e.g. "card-number":"4111...".
func JSONDigits(field string) Rule {
	name := regexp.QuoteMeta(field)
	return MustRule(
		`(`+escapedQuote+name+escapedQuote+`:\s*`+escapedQuote+`)\d+`,
		`${1}`+Marker,
	)
}

// JSONField redacts any JSON string value up to the closing quote. A value
// starting with "[" is left alone so Marker is never matched again.
func JSONField(field string) Rule {
	name := regexp.QuoteMeta(field)
	return MustRule(
		`(?i)(`+escapedQuote+name+escapedQuote+`:\s*`+escapedQuote+`)[^"\\\[][^"\\]*`,
		`${1}`+Marker,
	)
}

// JSONNumber redacts a bare numeric JSON value, e.g. "cvv":123.
func JSONNumber(field string) Rule {
	name := regexp.QuoteMeta(field)
	return MustRule(
		`(`+escapedQuote+name+escapedQuote+`:\s*)\d+`,
		`${1}`+Marker,
	)
}

// FormField redacts a form-encoded value, e.g. card[number]=4242....
func FormField(field string) Rule {
	name := regexp.QuoteMeta(field)
	return MustRule(`(`+name+`=)[^&"\s\[][^&"\s]*`, `${1}`+Marker)
}

// Header redacts the value of a plain "Name: value" header, case-insensitive.
func Header(name string) Rule {
	return MustRule(`(?i)(`+regexp.QuoteMeta(name)+`:\s*)[^\s\\"\[][^\s\\"]*`, `${1}`+Marker)
}

// Bearer redacts bearer tokens in Authorization headers.
func Bearer() Rule {
	return MustRule(`(?i)(Authorization:\s*Bearer\s+)[A-Za-z0-9\-\._~\+\/]+=*`, `${1}`+Marker)
}

// Basic redacts basic credentials in Authorization headers.
func Basic() Rule {
	return MustRule(`(?i)(Authorization:\s*Basic\s+)[A-Za-z0-9\+\/]+=*`, `${1}`+Marker)
}

// UUID redacts every UUID in the transcript.
func UUID() Rule {
	return MustRule(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`, Marker)
}
