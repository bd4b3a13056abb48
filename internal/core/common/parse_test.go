package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseJSONPlain(t *testing.T) {
	got, err := ParseJSON[payload](`{"name": "a", "count": 2}`)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "a", Count: 2}, got)
}

func TestParseJSONSurroundedByProse(t *testing.T) {
	resp := "Sure! Here is the JSON you asked for:\n```json\n{\"name\": \"b\", \"count\": 7}\n```\nLet me know if you need anything else."
	got, err := ParseJSON[payload](resp)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "b", Count: 7}, got)
}

func TestParseJSONNoObject(t *testing.T) {
	_, err := ParseJSON[payload]("there is no json here")
	assert.Error(t, err)
}

func TestParseJSONInvalidBody(t *testing.T) {
	_, err := ParseJSON[payload](`{"name": }`)
	assert.Error(t, err)
}
