package converter_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/strata/pkg/converter"
	"github.com/aretw0/strata/pkg/core"
)

type Product struct {
	ID    string  `json:"-"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Stock int64   `json:"stock,omitempty"`
}

func (p *Product) DocumentKind() string     { return `App\Product` }
func (p *Product) DocumentID() string       { return p.ID }
func (p *Product) SetDocumentID(id string) { p.ID = id }

func mappings() (core.TypesMapping, core.BundlesMapping) {
	return core.TypesMapping{"product": `App\Product`, "order": `App\Order`},
		core.BundlesMapping{
			"product": {Namespace: `App\Product`, ProxyNamespace: `App\ProductProxy`, Type: "product"},
			"order":   {Namespace: `App\Order`, Type: "order"},
		}
}

func TestConvertToArray(t *testing.T) {
	c := converter.New(mappings())

	payload, err := c.ConvertToArray(&Product{ID: "p1", Title: "Lamp", Price: 9.5})
	require.NoError(t, err)
	assert.Equal(t, core.Payload{"_id": "p1", "title": "Lamp", "price": 9.5}, payload)

	payload, err = c.ConvertToArray(&Product{Title: "No id"})
	require.NoError(t, err)
	assert.NotContains(t, payload, core.IDField)

	_, err = c.ConvertToArray(nil)
	assert.Error(t, err)
}

type scalar string

func (scalar) DocumentKind() string { return "scalar" }
func (scalar) DocumentID() string   { return "" }

func TestConvertToArray_NotAnObject(t *testing.T) {
	c := converter.New(mappings())
	_, err := c.ConvertToArray(scalar("x"))
	assert.Error(t, err)
}

func TestConvertToArray_Strict(t *testing.T) {
	c := converter.New(nil, nil, converter.WithStrict(true))

	payload, err := c.ConvertToArray(&Product{Stock: 9007199254740993})
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), payload["stock"])
}

func TestConvertToDocument_Constructor(t *testing.T) {
	types, bundles := mappings()
	c := converter.New(types, bundles, converter.WithConstructor(`App\Product`, func() core.Document { return &Product{} }))

	doc, err := c.ConvertToDocument(core.Hit{Type: "product", ID: "p1", Source: json.RawMessage(`{"title":"Lamp","price":3}`)})
	require.NoError(t, err)
	assert.Equal(t, &Product{ID: "p1", Title: "Lamp", Price: 3}, doc)
}

func TestConvertToDocument_Raw(t *testing.T) {
	c := converter.New(mappings())

	doc, err := c.ConvertToDocument(core.Hit{Type: "order", ID: "o1", Source: json.RawMessage(`{"total":12}`)})
	require.NoError(t, err)

	raw, ok := doc.(*core.RawDocument)
	require.True(t, ok)
	assert.Equal(t, `App\Order`, raw.DocumentKind())
	assert.Equal(t, "o1", raw.DocumentID())
	assert.Equal(t, json.Number("12"), raw.Fields["total"])
}

func TestConvertToDocument_Errors(t *testing.T) {
	c := converter.New(mappings())

	_, err := c.ConvertToDocument(core.Hit{Type: "unknown"})
	assert.Error(t, err)

	_, err = c.ConvertToDocument(core.Hit{Type: "order", Source: json.RawMessage(`[1,2]`)})
	assert.Error(t, err)

	shared := converter.New(nil, core.BundlesMapping{
		"a": {Namespace: "A", Type: "shared"},
		"b": {Namespace: "B", Type: "shared"},
	})
	_, err = shared.ConvertToDocument(core.Hit{Type: "shared"})
	assert.ErrorIs(t, err, core.ErrMappingConflict)
}

func TestConvertToDocument_RepositoryKey(t *testing.T) {
	c := converter.New(nil, core.BundlesMapping{
		"product": {Namespace: `App\Product`, Type: "product"},
		"legacy":  {Namespace: `App\LegacyProduct`, Type: "product"},
	})

	doc, err := c.ConvertToDocument(core.Hit{Type: "product", Repository: "legacy", ID: "l1"})
	require.NoError(t, err)
	assert.Equal(t, `App\LegacyProduct`, doc.DocumentKind())
	assert.Equal(t, "l1", doc.DocumentID())

	doc, err = c.ConvertToDocument(core.Hit{Repository: "product"})
	require.NoError(t, err)
	assert.Equal(t, `App\Product`, doc.DocumentKind())

	_, err = c.ConvertToDocument(core.Hit{Type: "product"})
	assert.ErrorIs(t, err, core.ErrMappingConflict, "without a key the storage type is ambiguous")

	_, err = c.ConvertToDocument(core.Hit{Type: "order", Repository: "product"})
	assert.ErrorContains(t, err, "stores")

	_, err = c.ConvertToDocument(core.Hit{Repository: "missing"})
	assert.ErrorIs(t, err, core.ErrUndefinedRepository)
}

func TestConvertToDocument_SparseTypes(t *testing.T) {
	c := converter.New(nil, core.BundlesMapping{"tag": {Namespace: `App\Tag`, Type: "tag"}})

	doc, err := c.ConvertToDocument(core.Hit{Type: "tag", ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, `App\Tag`, doc.DocumentKind())
}

func TestRoundTrip_RawDocument(t *testing.T) {
	c := converter.New(mappings())
	in := core.NewRawDocument(`App\Order`, "o9", core.Payload{"total": 5})

	payload, err := c.ConvertToArray(in)
	require.NoError(t, err)
	assert.Equal(t, core.Payload{"_id": "o9", "total": float64(5)}, payload)
}

func TestFactory(t *testing.T) {
	types, bundles := mappings()
	conv, err := converter.Factory(converter.WithStrict(true))(types, bundles)
	require.NoError(t, err)

	state := conv.(*converter.Converter).State().(converter.ConverterState)
	assert.True(t, state.Strict)
	assert.Equal(t, []string{`App\Order`, `App\Product`}, state.Classes)
}
