package promotion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lawnquote/decision/catalog"
)

func TestCodeTableLookup(t *testing.T) {
	table := NewCodeTable(catalog.Default().PromoCodes())
	assert.Equal(t, 3, table.Len())

	got := table.Lookup(" mapleGrove\t")
	assert.Equal(t, CodeResult{Code: "MAPLEGROVE", Valid: true, Discount: 15, Name: "Maple Grove Realty"}, got)

	assert.False(t, table.Lookup("").Valid)
	assert.False(t, table.Lookup("MAPLE").Valid)
}

func TestCodeTableRejectsZeroDiscount(t *testing.T) {
	table := NewCodeTable([]catalog.PromoCode{{Code: "EMPTY", Discount: 0}})
	assert.False(t, table.Lookup("EMPTY").Valid)
}
