package xmlel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDocument(t *testing.T) {
	root := El("Root", "xmlns", "urn:test").
		Child(El("Inner").
			MustChildText("Name", "Acme & Co").
			ChildText("Phone", "")).
		Child(TextEl("Empty", ""))

	out, err := root.Render(DefaultRenderOptions())
	require.NoError(t, err)

	want := `<?xml version="1.0" encoding="UTF-8"?>
<Root xmlns="urn:test">
  <Inner>
    <Name>Acme &amp; Co</Name>
  </Inner>
  <Empty/>
</Root>
`
	assert.Equal(t, want, string(out))
}

func TestChildTextSkipsEmpty(t *testing.T) {
	e := El("E").ChildText("A", "").ChildText("B", "x")
	require.Len(t, e.Children, 1)
	assert.Equal(t, "B", e.Children[0].Name)
}

func TestMustChildTextKeepsEmpty(t *testing.T) {
	e := El("E").MustChildText("A", "")
	require.Len(t, e.Children, 1)
	assert.Equal(t, "A", e.Children[0].Name)
	assert.Empty(t, e.Children[0].Text)
}

func TestAttributeEscaping(t *testing.T) {
	out, err := El("E", "v", `a<b>&"c`).Render(RenderOptions{})
	require.NoError(t, err)
	assert.Contains(t, string(out), `v="a&lt;b&gt;&amp;&#34;c"`)
}

func TestRoundTrip(t *testing.T) {
	root := El("Doc", "version", "1.0").
		Child(El("Header").
			MustChildText("Title", "report").
			MustChildText("Count", "2")).
		Child(El("Body").
			Child(TextEl("Line", "first")).
			Child(TextEl("Line", "second <escaped>")))

	rendered, err := root.Render(DefaultRenderOptions())
	require.NoError(t, err)

	parsed, err := Parse(rendered)
	require.NoError(t, err)

	assert.Equal(t, "Doc", parsed.Name)
	require.Len(t, parsed.Attrs, 1)
	assert.Equal(t, "1.0", parsed.Attrs[0].Value)
	require.Len(t, parsed.Children, 2)
	header := parsed.Children[0]
	require.Len(t, header.Children, 2)
	assert.Equal(t, "report", header.Children[0].Text)
	body := parsed.Children[1]
	require.Len(t, body.Children, 2)
	assert.Equal(t, "second <escaped>", body.Children[1].Text)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("<a><b></a>"))
	require.Error(t, err)

	_, err = Parse([]byte(""))
	require.Error(t, err)
}
