package ingestopts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestOptionsValidate(t *testing.T) {
	o := NewOptions()
	errs := o.Validate()
	assert.Len(t, errs, 1, "country is required")

	o.Country = "Italy"
	assert.Empty(t, o.Validate())

	o.ChunkOverlap = o.ChunkSize
	o.BatchSize = 0
	assert.Len(t, o.Validate(), 2)
}
