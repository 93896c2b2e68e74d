package browser

import (
	"encoding/json"
	"strings"
)

// setItemFunction writes the credential into page localStorage
const setItemFunction = `(key, value) => { localStorage.setItem(key, value); return true; }`

// fetchFunction calls an API endpoint from inside the page so the request carries the page origin,
// with the stored credential as Authorization. It resolves to the raw response body.
const fetchFunction = `(url, key) => fetch(url, {
	headers: {
		'Authorization': localStorage.getItem(key) || '',
		'Content-Type': 'application/json'
	}
}).then(r => r.text())`

// readyExpression is polled before each fetch instead of sleeping a fixed time
const readyExpression = `document.readyState === 'complete'`

// callExpression renders fn applied to args as a standalone expression, JSON-quoting every argument
func callExpression(fn string, args ...string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		b, _ := json.Marshal(arg)
		quoted[i] = string(b)
	}
	return "(" + fn + ")(" + strings.Join(quoted, ", ") + ")"
}
