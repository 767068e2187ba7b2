package core

import "strings"

const RedactedValue = "[REDACTED]"

// Keys are compared after compactKey, so the lists hold folded forms only.
var (
	sensitiveKeyParts = []string{
		"password", "secret", "token", "apikey", "privatekey", "passphrase",
		"cardnumber", "ccnumber", "cvv", "cvc", "verificationvalue",
		"accountnumber", "bankaccnum", "bankrtenum", "routingnumber",
		"signature", "requestbase64",
	}

	// traceKeys contain a sensitive part but only identify the operation.
	traceKeys = map[string]struct{}{
		"providerid": {}, "transactionid": {}, "authorization": {}, "idempotencykey": {},
		"orderid": {}, "traceid": {}, "requestid": {}, "tokentype": {},
	}

	keyFolder = strings.NewReplacer("-", "", "_", "", " ", "")
)

// RedactSensitiveMap copies a response tree or metadata map, masking values whose
// keys name card data, bank data or credentials.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactMap(metadata)
}

// RedactSensitiveValue walks maps and slices inside value; scalars come back
// unchanged.
func RedactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = RedactSensitiveValue(item)
		}
		return out
	default:
		return value
	}
}

func redactMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if sensitiveKey(key) {
			target[key] = RedactedValue
		} else {
			target[key] = RedactSensitiveValue(value)
		}
	}
	return target
}

func sensitiveKey(key string) bool {
	folded := compactKey(key)
	if _, trace := traceKeys[folded]; trace || folded == "" {
		return false
	}
	for _, part := range sensitiveKeyParts {
		if strings.Contains(folded, part) {
			return true
		}
	}
	return false
}

// compactKey folds "card-number", "card_number" and "cardNumber" to one form.
func compactKey(key string) string {
	return keyFolder.Replace(strings.ToLower(strings.TrimSpace(key)))
}
