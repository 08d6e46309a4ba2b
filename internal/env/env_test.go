package env

import (
	"testing"

	"github.com/ekisa-team/scanbill/internal/envvar"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert.Equal(t, Production, Parse("PROD"))
	assert.Equal(t, Production, Parse(" production "))
	assert.Equal(t, Test, Parse("testing"))
	assert.Equal(t, Development, Parse(""))
	assert.Equal(t, Development, Parse("staging"))
}

func TestFromEnv(t *testing.T) {
	t.Setenv(envvar.ScanbillEnv, "production")
	assert.True(t, FromEnv().IsProduction())

	t.Setenv(envvar.ScanbillEnv, "")
	assert.Equal(t, Development, FromEnv())
}
