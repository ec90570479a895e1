package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	assert.Equal(t, "en", Match(""))
	assert.Equal(t, "de", Match("de"))
	assert.Equal(t, "de", Match("de-CH,de;q=0.9,en;q=0.8"))
	assert.Equal(t, "en", Match("en-US"))
	assert.Equal(t, "en", Match("fr-FR"))
	assert.Equal(t, "en", Match("%%%"))
}

func TestFor(t *testing.T) {
	assert.Equal(t, "Heute", For("de").Present)
	assert.Equal(t, "Berufserfahrung", For("de-AT").Experience)
	assert.Equal(t, "present", For("").Present)
}
