package services

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trainedColumns = []string{
	"year", "month", "quantity", "unit_price",
	"product_top_Bread", "product_top_Milk", "product_top_other",
	"store_location_top_Mall", "store_location_top_Uptown",
}

func milkRequest() FeatureInput {
	return FeatureInput{Product: "Milk", StoreLocation: "Mall", Date: "2023-06-15", Quantity: "5", UnitPrice: "2.0"}
}

func TestBuildSetsKnownColumns(t *testing.T) {
	vec := NewFeatureBuilder().Build(milkRequest(), trainedColumns)

	assert.Equal(t, trainedColumns, vec.Columns)
	assert.Equal(t, []float64{2023, 6, 5, 2, 0, 1, 0, 1, 0}, vec.Values)
	assert.Empty(t, vec.Fallbacks)
}

func TestBuildPreservesLengthAndOrder(t *testing.T) {
	b := NewFeatureBuilder()
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		cols := append([]string(nil), trainedColumns...)
		rnd.Shuffle(len(cols), func(a, c int) { cols[a], cols[c] = cols[c], cols[a] })
		cols = cols[:1+rnd.Intn(len(cols))]

		vec := b.Build(milkRequest(), cols)
		require.Len(t, vec.Values, len(cols))
		assert.Equal(t, cols, vec.Columns)
		if v, ok := vec.Get("year"); ok {
			assert.Equal(t, 2023.0, v)
		}
	}
}

func TestBuildUnknownCategoryLeavesGroupZero(t *testing.T) {
	in := milkRequest()
	in.Product = "Caviar"
	vec := NewFeatureBuilder().Build(in, trainedColumns)

	for _, c := range []string{"product_top_Bread", "product_top_Milk", "product_top_other"} {
		v, _ := vec.Get(c)
		assert.Equal(t, 0.0, v, c)
	}
	require.Len(t, vec.Fallbacks, 1)
	assert.Equal(t, "product", vec.Fallbacks[0].Field)
	assert.True(t, vec.Fallbacks[0].Fallback)
}

func TestBuildInvalidInputsResolveToZero(t *testing.T) {
	in := FeatureInput{Product: "Milk", StoreLocation: "Mall", Date: "15th of June", Quantity: "five", UnitPrice: ""}
	vec := NewFeatureBuilder().Build(in, trainedColumns)

	assert.Equal(t, []float64{0, 0, 0, 0}, vec.Values[:4])
	assert.Len(t, vec.Fallbacks, 4)
}

func TestBuildFallbackLayoutWithoutColumns(t *testing.T) {
	in := FeatureInput{Product: "Milk", Date: "2023-06-15", Quantity: "0", UnitPrice: "0"}
	vec := NewFeatureBuilder().Build(in, nil)

	assert.Equal(t, FallbackColumns, vec.Columns)
	assert.Equal(t, []float64{2023, 6, 0, 0}, vec.Values)
}

func TestBuildDoesNotSpecialCaseDelimiterInValue(t *testing.T) {
	cols := []string{"product_top_top_Foo"}
	vec := NewFeatureBuilder().Build(FeatureInput{Product: "top_Foo"}, cols)
	assert.Equal(t, []float64{1}, vec.Values)
}

func TestBulkEncodeLayout(t *testing.T) {
	ds := cleanedDataset(t, "date,store_location,product,quantity,unit_price,total\n"+
		"2023-01-01,X,A,1,1,1\n"+
		"2023-02-01,Y,A,2,1,2\n"+
		"2023-03-01,X,A,3,1,3\n"+
		"2023-04-01,Y,B,4,1,4\n"+
		"bad,X,B,5,1,5\n"+
		"2023-06-01,X,C,,1,6\n")

	enc := NewFeatureBuilder().BulkEncode(ds, 2)

	assert.Equal(t, []string{
		"year", "month", "quantity", "unit_price",
		"product_top_B", "product_top_other",
		"store_location_top_Y",
	}, enc.Columns)
	require.Len(t, enc.Rows, 6)
	assert.Equal(t, []float64{2023, 1, 1, 1, 0, 0, 0}, enc.Rows[0])
	assert.Equal(t, []float64{2023, 4, 4, 1, 1, 0, 1}, enc.Rows[3])
	assert.Equal(t, []float64{0, 0, 5, 1, 1, 0, 0}, enc.Rows[4], "null date encodes as 0")
	assert.True(t, hasNaN(enc.Rows[5]), "missing quantity stays unresolved")
	assert.Equal(t, 1.0, enc.Rows[5][5], "value outside top-N collapses to other")
}

func TestBulkEncodeMatchesBuild(t *testing.T) {
	ds := generatedDataset(t, smallGeneratorConfig(10))
	b := NewFeatureBuilder()
	enc := b.BulkEncode(ds, DefaultTopN)

	for i := 0; i < ds.Len(); i += 37 {
		in := FeatureInput{
			Product:       ds.TextAt("product", i),
			StoreLocation: ds.TextAt("store_location", i),
			Date:          ds.TextAt("date", i),
			Quantity:      ds.TextAt("quantity", i),
			UnitPrice:     ds.TextAt("unit_price", i),
		}
		vec := b.Build(in, enc.Columns)
		assert.Equal(t, enc.Rows[i], vec.Values, "row %d", i)
	}
}

func TestTopCategoriesBreaksTiesLexicographically(t *testing.T) {
	top := TopCategories([]string{"b", "a", "c", "c", ""}, 2)
	assert.Equal(t, map[string]bool{"c": true, "a": true}, top)
}
