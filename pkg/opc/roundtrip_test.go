package opc

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcbox/opcbox/pkg/partname"
	"github.com/opcbox/opcbox/pkg/rels"
)

func TestCreateSaveReopen(t *testing.T) {
	p := New()

	partA, err := p.CreatePart(partname.MustParse("/partA"), "text/plain")
	require.NoError(t, err)
	require.NoError(t, partA.SetContent([]byte("content of part A")))

	partB, err := p.CreatePart(partname.MustParse("/partB"), "image/png")
	require.NoError(t, err)

	relAB, err := partA.AddRelationship(partB.Name(), "http://example/image")
	require.NoError(t, err)
	assert.Equal(t, "rId1", relAB.ID())

	relExt, err := partA.AddExternalRelationship("http://poi.apache.org/", hyperlinkType)
	require.NoError(t, err)
	assert.Equal(t, "rId2", relExt.ID())

	// Each part allocates in its own scope.
	relB, err := partB.AddExternalRelationship("http://poi.apache.org/spreadsheet/", hyperlinkType)
	require.NoError(t, err)
	assert.Equal(t, "rId1", relB.ID())

	_, err = p.AddRelationship(partA.Name(), "http://example/officeDocument")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))

	// Reopen and check that nothing changed shape in flight.
	q, err := OpenReader(bytes.NewReader(buf.Bytes()), Read)
	require.NoError(t, err)

	qa := q.Part(partname.MustParse("/partA"))
	require.NotNil(t, qa)
	content, err := qa.Content()
	require.NoError(t, err)
	assert.Equal(t, []byte("content of part A"), content)

	c, err := qa.Relationships()
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	got := c.ByID("rId1")
	require.NotNil(t, got)
	assert.Equal(t, "/partB", got.Target())
	assert.Equal(t, rels.ModeInternal, got.Mode())

	got = c.ByID("rId2")
	require.NotNil(t, got)
	assert.Equal(t, "http://poi.apache.org/", got.Target())
	assert.Equal(t, rels.ModeExternal, got.Mode())
	assert.Equal(t, hyperlinkType, got.Type())

	root := q.Relationship("rId1")
	require.NotNil(t, root)
	assert.Equal(t, "/partA", root.Target())
}

func TestIDAllocationMonotonicAcrossReload(t *testing.T) {
	data := buildContainer(t, []entry{
		{"[Content_Types].xml", plainManifest},
		{"_rels/.rels", relsDoc(
			`<Relationship Id="rId1" Type="` + hyperlinkType + `" Target="http://a/" TargetMode="External"/>` +
				`<Relationship Id="rId2" Type="` + hyperlinkType + `" Target="http://b/" TargetMode="External"/>` +
				`<Relationship Id="rId3" Type="` + hyperlinkType + `" Target="http://c/" TargetMode="External"/>` +
				`<Relationship Id="rId4" Type="` + commentsType + `" Target="/partA"/>` +
				`<Relationship Id="rId5" Type="` + commentsType + `" Target="/partA"/>` +
				`<Relationship Id="rId6" Type="` + commentsType + `" Target="/partB"/>`)},
		{"partA", "a"},
		{"partB", "b"},
	})

	p, err := OpenReader(bytes.NewReader(data), ReadWrite)
	require.NoError(t, err)
	require.Equal(t, 6, p.Relationships().Len())

	for i, want := range []string{"rId7", "rId8", "rId9"} {
		r, err := p.AddExternalRelationship("http://example.org/", hyperlinkType)
		require.NoError(t, err)
		assert.Equal(t, want, r.ID(), "allocation %d", i)
	}

	// Removing never frees an id within a session.
	require.NoError(t, p.RemoveRelationship("rId9"))
	r, err := p.AddExternalRelationship("http://example.org/", hyperlinkType)
	require.NoError(t, err)
	assert.Equal(t, "rId10", r.ID())

	// A reloaded collection allocates above the highest persisted suffix,
	// even across the gap left by the removal.
	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))

	q, err := OpenReader(bytes.NewReader(buf.Bytes()), ReadWrite)
	require.NoError(t, err)
	require.Equal(t, 9, q.Relationships().Len())
	r, err = q.AddExternalRelationship("http://example.org/", hyperlinkType)
	require.NoError(t, err)
	assert.Equal(t, "rId11", r.ID())
}

func TestSelfRelationshipSurvivesReload(t *testing.T) {
	p := New()
	partA, err := p.CreatePart(partname.MustParse("/partA"), "text/plain")
	require.NoError(t, err)

	self, err := partA.AddRelationship(partA.Name(), commentsType)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))

	q, err := OpenReader(bytes.NewReader(buf.Bytes()), Read)
	require.NoError(t, err)
	qa := q.Part(partname.MustParse("/partA"))
	require.NotNil(t, qa)

	got, err := qa.Relationship(self.ID())
	require.NoError(t, err)
	require.NotNil(t, got)

	target, err := partname.Resolve(qa.Name(), got.Target())
	require.NoError(t, err)
	assert.True(t, target.Equal(qa.Name()), "self edge must resolve back to its source")
}

func TestExternalTargetBytePreserving(t *testing.T) {
	// A trailing non-breaking space arrives raw in the document and must
	// survive any number of load/save cycles as %C2%A0.
	data := buildContainer(t, []entry{
		{"[Content_Types].xml", plainManifest},
		{"_rels/.rels", relsDoc(
			`<Relationship Id="rId1" Type="` + hyperlinkType + `" Target="mailto:nobody@nowhere.uk` + " " + `" TargetMode="External"/>`)},
		{"partA", "a"},
	})

	p, err := OpenReader(bytes.NewReader(data), ReadWrite)
	require.NoError(t, err)

	const wantStored = "mailto:nobody@nowhere.uk%C2%A0"
	rel := p.Relationship("rId1")
	require.NotNil(t, rel)
	assert.Equal(t, wantStored, rel.Target())
	assert.Equal(t, "mailto:nobody@nowhere.uk ", partname.DecodeTarget(rel.Target()))

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))
	q, err := OpenReader(bytes.NewReader(buf.Bytes()), Read)
	require.NoError(t, err)
	rel = q.Relationship("rId1")
	require.NotNil(t, rel)
	assert.Equal(t, wantStored, rel.Target(), "round trip must not corrupt the target")
}

func TestRelativeTargetsRoundTrip(t *testing.T) {
	// A target that climbs far above the source is preserved verbatim, and a
	// percent-encoded fragment rides along untouched.
	const target = "../../../../../../../cell%20comments.xlsx" +
		"#'%D0%90%D0%BF%D0%B0%D1%87%D0%B5%20%D0%9F%D0%9E%D0%98'!A5"

	p := New()
	sheet, err := p.CreatePart(partname.MustParse("/xl/worksheets/sheet1.xml"), "application/xml")
	require.NoError(t, err)

	rel, err := sheet.AddExternalRelationship(target, hyperlinkType)
	require.NoError(t, err)
	assert.Equal(t, target, rel.Target())
	assert.Equal(t, "../../../../../../../cell comments.xlsx#'Апаче ПОИ'!A5",
		partname.DecodeTarget(rel.Target()))

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))

	q, err := OpenReader(bytes.NewReader(buf.Bytes()), Read)
	require.NoError(t, err)
	qs := q.Part(partname.MustParse("/xl/worksheets/sheet1.xml"))
	require.NotNil(t, qs)
	got, err := qs.Relationship("rId1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, target, got.Target())
}

func TestEntityInjectionNeutralized(t *testing.T) {
	// A document that defines entities and routes attribute values through
	// them yields no relationship for those records, at either scope, and
	// never expands anything.
	poisoned := `<?xml version="1.0"?>
<!DOCTYPE Relationships [<!ENTITY lol "defined">]>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="` + hyperlinkType + `" Target="&lol;" TargetMode="External"/>
  <Relationship Id="rId2" Type="` + hyperlinkType + `" Target="http://safe.example/" TargetMode="External"/>
</Relationships>`

	data := buildContainer(t, []entry{
		{"[Content_Types].xml", plainManifest},
		{"_rels/.rels", poisoned},
		{"partA", "a"},
		{"_rels/partA.rels", poisoned},
	})

	p, err := OpenReader(bytes.NewReader(data), Read)
	require.NoError(t, err, "entity-bearing records are dropped, not fatal")

	assert.Nil(t, p.Relationship("rId1"), "entity-backed record must be absent")
	safe := p.Relationship("rId2")
	require.NotNil(t, safe)
	assert.Equal(t, "http://safe.example/", safe.Target())

	partA := p.Part(partname.MustParse("/partA"))
	require.NotNil(t, partA)
	c, err := partA.Relationships()
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Nil(t, c.ByID("rId1"))
}

func TestSaveKeepsPackageUsable(t *testing.T) {
	p := New()
	partA, err := p.CreatePart(partname.MustParse("/partA"), "text/plain")
	require.NoError(t, err)
	require.NoError(t, partA.SetContent([]byte("one")))

	var first bytes.Buffer
	require.NoError(t, p.Save(&first))

	// The package is still live and still writable after a save.
	require.NoError(t, partA.SetContent([]byte("two")))
	var second bytes.Buffer
	require.NoError(t, p.Save(&second))

	assert.NotEqual(t, first.Bytes(), second.Bytes())

	q1, err := OpenReader(bytes.NewReader(first.Bytes()), Read)
	require.NoError(t, err)
	c1, err := q1.Part(partname.MustParse("/partA")).Content()
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), c1)

	q2, err := OpenReader(bytes.NewReader(second.Bytes()), Read)
	require.NoError(t, err)
	c2, err := q2.Part(partname.MustParse("/partA")).Content()
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), c2)
}

func TestSaveFileAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.opc")

	p := New()
	_, err := p.CreatePart(partname.MustParse("/partA"), "text/plain")
	require.NoError(t, err)
	require.NoError(t, p.SaveFile(path))

	q, err := Open(path, Read)
	require.NoError(t, err)
	assert.NotNil(t, q.Part(partname.MustParse("/partA")))
	require.NoError(t, q.Close())

	// No stray temp files left next to the target.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestCloseCommitsUnsavedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.opc")

	p := Create(path)
	_, err := p.CreatePart(partname.MustParse("/partA"), "text/plain")
	require.NoError(t, err)
	require.NoError(t, p.Close())

	// Mutate and close without an explicit save: Close commits.
	q, err := Open(path, ReadWrite)
	require.NoError(t, err)
	_, err = q.CreatePart(partname.MustParse("/partB"), "image/png")
	require.NoError(t, err)
	require.NoError(t, q.Close())

	r, err := Open(path, Read)
	require.NoError(t, err)
	assert.NotNil(t, r.Part(partname.MustParse("/partA")))
	assert.NotNil(t, r.Part(partname.MustParse("/partB")))
	require.NoError(t, r.Close())

	// A Read package never writes back on close.
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	s, err := Open(path, Read)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCompanionDocumentsOnDisk(t *testing.T) {
	// Empty collections produce no companion entry; the root document is
	// always present.
	p := New()
	_, err := p.CreatePart(partname.MustParse("/partA"), "text/plain")
	require.NoError(t, err)
	partB, err := p.CreatePart(partname.MustParse("/docs/partB.xml"), "application/xml")
	require.NoError(t, err)
	_, err = partB.AddExternalRelationship("http://example.org/", hyperlinkType)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))

	names := archiveNames(t, buf.Bytes())
	assert.Contains(t, names, "_rels/.rels")
	assert.Contains(t, names, "docs/_rels/partB.xml.rels")
	assert.NotContains(t, names, "_rels/partA.rels")
}

func archiveNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}
