package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseXML_Tree(t *testing.T) {
	root, err := ParseXML([]byte(`<catalog version="2">
		<item id="1"><name> Widget </name><tag>a</tag><tag>b</tag></item>
		<item id="2"><name>Gadget</name><meta><brand>Acme</brand></meta></item>
	</catalog>`))
	require.NoError(t, err)

	assert.Equal(t, "catalog", root.Name)
	assert.Equal(t, "2", root.Attrs["version"])

	items := root.ChildrenNamed("ITEM")
	require.Len(t, items, 2)
	assert.Equal(t, "Widget", items[0].Value("name"))
	assert.Equal(t, "Acme", items[1].Value("meta/brand"))
	assert.Equal(t, "", items[0].Value("meta/brand"))
	assert.Equal(t, "Gadget", items[1].FirstValue("title", "name"))

	m := items[0].Map()
	assert.Equal(t, "1", m["@id"])
	assert.Equal(t, "Widget", m["name"])
	assert.Equal(t, []any{"a", "b"}, m["tag"])
	assert.Equal(t, map[string]any{"brand": "Acme"}, items[1].Map()["meta"])
}

func TestParseXML_DeclaredLatin1(t *testing.T) {
	doc := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><Items><Item><ProductName>Caf`), 0xE9)
	doc = append(doc, []byte(`</ProductName></Item></Items>`)...)

	root, err := ParseXML(doc)
	require.NoError(t, err)
	assert.Equal(t, "Café", root.Value("Item/ProductName"))
}

func TestParseXML_HTMLEntities(t *testing.T) {
	root, err := ParseXML([]byte(`<p><name>Fish &amp; Chips&nbsp;Co</name></p>`))
	require.NoError(t, err)
	assert.Equal(t, "Fish & Chips\u00a0Co", root.Value("name"))
}

func TestParseXML_HTMLVoidElementNamesHoldText(t *testing.T) {
	root, err := ParseXML([]byte(`<syntechstock><stock><product>` +
		`<sku>A</sku><link>https://syntech.example/a</link><img>https://syntech.example/a.jpg</img>` +
		`<meta>x</meta><price>100</price></product></stock></syntechstock>`))
	require.NoError(t, err)

	p := root.Child("stock").Child("product")
	require.NotNil(t, p)
	assert.Equal(t, "https://syntech.example/a", p.Value("link"))
	assert.Equal(t, "https://syntech.example/a.jpg", p.Value("img"))
	assert.Equal(t, "100", p.Value("price"))
}

func TestParseXML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"truncated", `<Items><Item><StockCode>X`},
		{"no root", `<?xml version="1.0"?>`},
		{"two roots", `<a></a><b></b>`},
		{"unclosed child", `<a><b></a>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseXML([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestNode_ChildWithPrefix(t *testing.T) {
	root, err := ParseXML([]byte(`<r><Header/><productdata_2024><Product/></productdata_2024></r>`))
	require.NoError(t, err)

	c := root.ChildWithPrefix("ProductData")
	require.NotNil(t, c)
	assert.Equal(t, "productdata_2024", c.Name)
	assert.Nil(t, root.ChildWithPrefix("Footer"))
}
