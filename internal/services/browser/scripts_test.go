package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallExpression_QuotesArguments(t *testing.T) {
	expr := callExpression(setItemFunction, "token", `abc'"); alert(1); ("`)

	assert.Equal(t,
		`((key, value) => { localStorage.setItem(key, value); return true; })("token", "abc'\"); alert(1); (\"")`,
		expr,
	)
}

func TestCallExpression_FetchUsesStoredToken(t *testing.T) {
	expr := callExpression(fetchFunction, "https://api.example.com/api/v1/user/info", "token")

	assert.Contains(t, expr, `localStorage.getItem(key)`)
	assert.Contains(t, expr, `'Authorization'`)
	assert.Contains(t, expr, `r.text()`)
	assert.Contains(t, expr, `("https://api.example.com/api/v1/user/info", "token")`)
}
