package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSubstitutesParams(t *testing.T) {
	c := Default()
	got := c.Render("table-created", "en", map[string]string{"host": "ada", "game": "Pig"})
	assert.Equal(t, "ada created a table for Pig.", got)
}

func TestRenderFallsBackToEnglish(t *testing.T) {
	c := NewCatalog(map[string]map[string]string{
		"en": {"greet": "hello {name}"},
		"pt": {},
	})
	assert.Equal(t, "hello ada", c.Render("greet", "pt", map[string]string{"name": "ada"}))
}

func TestRenderUnknownKeyKeepsInformation(t *testing.T) {
	c := NewCatalog(nil)
	got := c.Render("pig-rolled", "en", map[string]string{"player": "ada", "die": "4"})
	assert.Equal(t, "pig-rolled die=4 player=ada", got)
}
