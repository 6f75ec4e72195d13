package opc

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcbox/opcbox/pkg/errors"
	"github.com/opcbox/opcbox/pkg/partname"
)

const (
	hyperlinkType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
	commentsType  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments"

	plainManifest = `<?xml version="1.0"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/partA" ContentType="text/plain"/>
  <Override PartName="/partB" ContentType="image/png"/>
</Types>`
)

// entry is one archive entry in declaration order.
type entry struct {
	name string
	data string
}

// buildContainer assembles a container archive from raw entries, preserving
// their order.
func buildContainer(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func relsDoc(body string) string {
	return `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + body + `
</Relationships>`
}

func TestOpenIndexesEverything(t *testing.T) {
	data := buildContainer(t, []entry{
		{"[Content_Types].xml", plainManifest},
		{"_rels/.rels", relsDoc(`<Relationship Id="rId1" Type="http://example/officeDocument" Target="/partA"/>`)},
		{"partA", "hello"},
		{"partB", "png-bytes"},
	})

	p, err := OpenReader(bytes.NewReader(data), Read)
	require.NoError(t, err)

	require.Len(t, p.Parts(), 2)

	partA := p.Part(partname.MustParse("/partA"))
	require.NotNil(t, partA)
	assert.Equal(t, "text/plain", partA.ContentType())

	content, err := partA.Content()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)

	rel := p.Relationship("rId1")
	require.NotNil(t, rel)
	assert.Equal(t, "/partA", rel.Target())
}

func TestOpenFailures(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantCode errors.Code
	}{
		{
			"not an archive",
			[]byte("this is not a zip file"),
			errors.ErrCodeContainer,
		},
		{
			"missing content-type manifest",
			nil, // filled below
			errors.ErrCodeContentTypes,
		},
		{
			"part without content type",
			nil,
			errors.ErrCodeUnknownContentType,
		},
		{
			"malformed root relationships",
			nil,
			errors.ErrCodeRelationships,
		},
	}
	tests[1].data = buildContainer(t, []entry{{"partA", "x"}})
	tests[2].data = buildContainer(t, []entry{
		{"[Content_Types].xml", `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`},
		{"partA", "x"},
	})
	tests[3].data = buildContainer(t, []entry{
		{"[Content_Types].xml", plainManifest},
		{"_rels/.rels", `<Relationships><Relationship Id="rId1" Type="t" Target="/p" TargetMode="Nope"/></Relationships>`},
		{"partA", "x"},
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenReader(bytes.NewReader(tt.data), Read)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.GetCode(err), "got: %v", err)
		})
	}
}

func TestDuplicatePartNamesRejected(t *testing.T) {
	// Names differing only in case denote the same part.
	data := buildContainer(t, []entry{
		{"[Content_Types].xml", plainManifest},
		{"partA", "x"},
		{"PARTA", "y"},
	})

	_, err := OpenReader(bytes.NewReader(data), Read)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDuplicatePart, errors.GetCode(err))
}

func TestCreatePart(t *testing.T) {
	p := New()

	partA, err := p.CreatePart(partname.MustParse("/partA"), "text/plain")
	require.NoError(t, err)
	require.NotNil(t, partA)
	assert.Equal(t, "text/plain", partA.ContentType())

	// Duplicate names, case-insensitively.
	_, err = p.CreatePart(partname.MustParse("/PARTA"), "text/plain")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDuplicatePart, errors.GetCode(err))

	// Relationship document names are managed by the engine.
	_, err = p.CreatePart(partname.MustParse("/_rels/.rels"), "text/plain")
	require.Error(t, err)
	assert.True(t, errors.IsFormat(err))

	// Lookup misses are not errors.
	assert.Nil(t, p.Part(partname.MustParse("/absent")))
	assert.Empty(t, p.PartsByName("/nothing/*"))
}

func TestPartsByNameGlob(t *testing.T) {
	p := New()
	for _, name := range []string{
		"/xl/worksheets/sheet1.xml",
		"/xl/worksheets/sheet2.xml",
		"/xl/workbook.xml",
		"/docProps/core.xml",
	} {
		_, err := p.CreatePart(partname.MustParse(name), "application/xml")
		require.NoError(t, err)
	}

	sheets := p.PartsByName("/xl/worksheets/*.xml")
	require.Len(t, sheets, 2)
	assert.Equal(t, "/xl/worksheets/sheet1.xml", sheets[0].Name().String())
	assert.Equal(t, "/xl/worksheets/sheet2.xml", sheets[1].Name().String())

	all := p.PartsByName("/**/*.xml")
	assert.Len(t, all, 4)
}

func TestReadAccessBlocksMutation(t *testing.T) {
	data := buildContainer(t, []entry{
		{"[Content_Types].xml", plainManifest},
		{"partA", "x"},
	})
	p, err := OpenReader(bytes.NewReader(data), Read)
	require.NoError(t, err)

	_, err = p.CreatePart(partname.MustParse("/partC"), "text/plain")
	assert.Equal(t, errors.ErrCodeReadOnly, errors.GetCode(err))

	_, err = p.AddExternalRelationship("http://example.org/", hyperlinkType)
	assert.Equal(t, errors.ErrCodeReadOnly, errors.GetCode(err))

	partA := p.Part(partname.MustParse("/partA"))
	require.NotNil(t, partA)
	assert.Equal(t, errors.ErrCodeReadOnly, errors.GetCode(partA.SetContent([]byte("y"))))

	_, err = partA.AddExternalRelationship("http://example.org/", hyperlinkType)
	assert.Equal(t, errors.ErrCodeReadOnly, errors.GetCode(err))

	assert.Equal(t, errors.ErrCodeReadOnly, errors.GetCode(p.RemovePart(partA.Name())))

	// Saving is a mutation of the destination: a READ package cannot be
	// persisted anywhere, not even to a different stream.
	assert.Equal(t, errors.ErrCodeReadOnly, errors.GetCode(p.Save(&bytes.Buffer{})))
	assert.Equal(t, errors.ErrCodeReadOnly,
		errors.GetCode(p.SaveFile(filepath.Join(t.TempDir(), "copy.opc"))))

	// Reads still work.
	content, err := partA.Content()
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), content)
}

func TestClosedIsTerminal(t *testing.T) {
	p := New()
	_, err := p.CreatePart(partname.MustParse("/partA"), "text/plain")
	require.NoError(t, err)

	require.NoError(t, p.Close())

	_, err = p.CreatePart(partname.MustParse("/partB"), "text/plain")
	assert.Equal(t, errors.ErrCodeClosed, errors.GetCode(err))

	assert.Equal(t, errors.ErrCodeClosed, errors.GetCode(p.Save(&bytes.Buffer{})))
	assert.Equal(t, errors.ErrCodeClosed, errors.GetCode(p.Revert()))
	assert.Equal(t, errors.ErrCodeClosed, errors.GetCode(p.Close()))
	assert.Nil(t, p.Part(partname.MustParse("/partA")))
	assert.Empty(t, p.Parts())
}

func TestRevertDiscardsMutations(t *testing.T) {
	data := buildContainer(t, []entry{
		{"[Content_Types].xml", plainManifest},
		{"_rels/.rels", relsDoc(`<Relationship Id="rId1" Type="http://example/officeDocument" Target="/partA"/>`)},
		{"partA", "original"},
	})
	p, err := OpenReader(bytes.NewReader(data), ReadWrite)
	require.NoError(t, err)

	// Mutate everything in sight.
	_, err = p.CreatePart(partname.MustParse("/extra"), "text/plain")
	require.NoError(t, err)
	_, err = p.AddExternalRelationship("http://example.org/", hyperlinkType)
	require.NoError(t, err)
	partA := p.Part(partname.MustParse("/partA"))
	require.NoError(t, partA.SetContent([]byte("changed")))

	require.NoError(t, p.Revert())

	assert.Nil(t, p.Part(partname.MustParse("/extra")))
	assert.Equal(t, 1, p.Relationships().Len())

	partA = p.Part(partname.MustParse("/partA"))
	require.NotNil(t, partA)
	content, err := partA.Content()
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), content, "revert must restore the last-read view")
}

func TestRevertOnCreatedResetsToEmpty(t *testing.T) {
	p := New()
	_, err := p.CreatePart(partname.MustParse("/partA"), "text/plain")
	require.NoError(t, err)

	require.NoError(t, p.Revert())
	assert.Empty(t, p.Parts())
	assert.Equal(t, 0, p.Relationships().Len())
}

func TestLazyRelsAfterEagerIndex(t *testing.T) {
	// The companion document appears before its part and references a part
	// declared even later. With eager part indexing the cross-reference can
	// never be mistaken for "no relationships".
	const sheetManifest = `<?xml version="1.0"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Default Extension="png" ContentType="image/png"/>
</Types>`

	data := buildContainer(t, []entry{
		{"[Content_Types].xml", sheetManifest},
		{"xl/worksheets/_rels/sheet1.xml.rels", relsDoc(
			`<Relationship Id="rId1" Type="http://example/image" Target="../media/image1.png"/>`)},
		{"xl/worksheets/sheet1.xml", "<sheet/>"},
		{"xl/media/image1.png", "png"},
	})

	p, err := OpenReader(bytes.NewReader(data), Read)
	require.NoError(t, err)

	sheet := p.Part(partname.MustParse("/xl/worksheets/sheet1.xml"))
	require.NotNil(t, sheet)

	c, err := sheet.Relationships()
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	rel := c.ByID("rId1")
	require.NotNil(t, rel)
	target, err := partname.Resolve(sheet.Name(), rel.Target())
	require.NoError(t, err)
	assert.NotNil(t, p.Part(target), "resolved target must exist in the eagerly built table")
}

func TestDanglingInternalTargetKept(t *testing.T) {
	data := buildContainer(t, []entry{
		{"[Content_Types].xml", plainManifest},
		{"_rels/.rels", relsDoc(`<Relationship Id="rId1" Type="t" Target="/missing"/>`)},
		{"partA", "x"},
	})

	p, err := OpenReader(bytes.NewReader(data), Read)
	require.NoError(t, err)

	// The edge stays; resolving its target is the caller's lookup, and a
	// lookup miss is not an error.
	rel := p.Relationship("rId1")
	require.NotNil(t, rel)
	assert.Nil(t, p.Part(partname.MustParse("/missing")))
}

func TestRelationshipStateIsPerPart(t *testing.T) {
	p := New()
	partA, err := p.CreatePart(partname.MustParse("/partA"), "text/plain")
	require.NoError(t, err)
	partB, err := p.CreatePart(partname.MustParse("/partB"), "text/plain")
	require.NoError(t, err)

	_, err = partA.AddExternalRelationship("http://example.org/", hyperlinkType)
	require.NoError(t, err)

	hasA, err := partA.HasRelationships()
	require.NoError(t, err)
	hasB, err := partB.HasRelationships()
	require.NoError(t, err)
	assert.True(t, hasA)
	assert.False(t, hasB, "one part's relationships must not leak into another")
	assert.Equal(t, 0, p.Relationships().Len(), "part relationships must not leak into the root collection")
}
