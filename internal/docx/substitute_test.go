package docx

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/garyjia/actas-satisfaccion/internal/docx/docxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBody(t *testing.T, body string) *Document {
	t.Helper()
	doc, err := OpenBytes(docxtest.Build(body))
	require.NoError(t, err)
	return doc
}

func TestSubstituteText(t *testing.T) {
	t.Run("replaces token in body paragraph keeping run formatting", func(t *testing.T) {
		doc := openBody(t, docxtest.Paragraph("Yo, @NOMBRE@, identificado"))

		n := doc.SubstituteText("@NOMBRE@", "Ana Ruiz")

		assert.Equal(t, 1, n)
		assert.Equal(t, "Yo, Ana Ruiz, identificado", doc.Text())
		assert.Contains(t, string(doc.XML()), `<w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Yo, Ana Ruiz, identificado</w:t>`)
	})

	t.Run("replaces tokens inside nested tables", func(t *testing.T) {
		inner := docxtest.Table(docxtest.Paragraph("Municipio: @MUNICIPIO@"))
		outer := docxtest.Table(docxtest.Paragraph("datos")+inner, docxtest.Paragraph("@MUNICIPIO@"))
		doc := openBody(t, outer)

		n := doc.SubstituteText("@MUNICIPIO@", "Quimbaya")

		assert.Equal(t, 2, n)
		assert.NotContains(t, doc.Text(), "@MUNICIPIO@")
		assert.Contains(t, doc.Text(), "Municipio: Quimbaya")
	})

	t.Run("replaces tokens in deeply nested tables", func(t *testing.T) {
		body := docxtest.Paragraph("@OT@")
		for i := 0; i < 12; i++ {
			body = docxtest.Table(docxtest.Paragraph("nivel") + body)
		}
		doc := openBody(t, body)

		assert.Equal(t, 1, doc.SubstituteText("@OT@", "OT-991"))
		assert.True(t, doc.Contains("OT-991"))
	})

	t.Run("leaves tokens split across runs untouched", func(t *testing.T) {
		doc := openBody(t, docxtest.Paragraph("Sr(a). @NOM", "BRE@"))
		before := doc.XML()

		n := doc.SubstituteText("@NOMBRE@", "Ana Ruiz")

		assert.Equal(t, 0, n)
		assert.Equal(t, before, doc.XML())
		assert.Contains(t, doc.Text(), "@NOMBRE@")
	})

	t.Run("folds a token spread over adjacent text elements of one run", func(t *testing.T) {
		doc := openBody(t, `<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>Sr. @NOM</w:t><w:t>BRE@ fin</w:t></w:r></w:p>`)

		n := doc.SubstituteText("@NOMBRE@", "Ana")

		assert.Equal(t, 1, n)
		assert.Contains(t, string(doc.XML()), `<w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Sr. Ana fin</w:t></w:r>`)
	})

	t.Run("leaves a token broken by a break or tab untouched", func(t *testing.T) {
		for _, sep := range []string{`<w:br/>`, `<w:tab/>`} {
			doc := openBody(t, `<w:p><w:r><w:t xml:space="preserve">Linea1 @NOM</w:t>`+sep+
				`<w:t xml:space="preserve">BRE@ fin</w:t></w:r></w:p>`)
			before := doc.XML()

			n := doc.SubstituteText("@NOMBRE@", "Ana")

			assert.Equal(t, 0, n, sep)
			assert.Equal(t, before, doc.XML(), sep)
		}
	})

	t.Run("absent token leaves the document byte identical", func(t *testing.T) {
		doc := openBody(t, docxtest.Paragraph("sin marcadores"))
		before, err := doc.Bytes()
		require.NoError(t, err)

		n := doc.SubstituteText("@VEREDA@", "La Española")

		after, err := doc.Bytes()
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, before, after)
	})

	t.Run("second application is a no-op", func(t *testing.T) {
		doc := openBody(t, docxtest.Paragraph("C.C. @CEDULA@"))

		assert.Equal(t, 1, doc.SubstituteText("@CEDULA@", "123"))
		once := doc.XML()
		assert.Equal(t, 0, doc.SubstituteText("@CEDULA@", "123"))

		assert.Equal(t, once, doc.XML())
	})

	t.Run("escapes markup characters in values", func(t *testing.T) {
		doc := openBody(t, docxtest.Paragraph("@COMENTARIO@"))

		doc.SubstituteText("@COMENTARIO@", `luz <ok> & "sin" daños`)

		assert.Equal(t, `luz <ok> & "sin" daños`, doc.Text())
		assert.Contains(t, string(doc.XML()), "luz &lt;ok&gt; &amp; \"sin\" daños")
	})

	t.Run("turns line feeds into breaks", func(t *testing.T) {
		doc := openBody(t, docxtest.Paragraph("@COMENTARIO@"))

		doc.SubstituteText("@COMENTARIO@", "linea uno\nlinea dos")

		xml := string(doc.XML())
		assert.Contains(t, xml, `<w:t xml:space="preserve">linea uno</w:t><w:br/><w:t xml:space="preserve">linea dos</w:t>`)
	})

	t.Run("replaces inside hyperlinks and content controls", func(t *testing.T) {
		body := `<w:sdt><w:sdtContent>` + docxtest.Paragraph("@NOMBRE@") + `</w:sdtContent></w:sdt>` +
			`<w:p><w:hyperlink r:id="rId9">` + docxtest.Run("@DIRECCION@") + `</w:hyperlink></w:p>`
		doc := openBody(t, body)

		assert.Equal(t, 1, doc.SubstituteText("@NOMBRE@", "Ana"))
		assert.Equal(t, 1, doc.SubstituteText("@DIRECCION@", "Calle 5"))
		assert.Equal(t, "Ana\nCalle 5", doc.Text())
	})
}

func TestSubstituteImage(t *testing.T) {
	dir := t.TempDir()
	firma := docxtest.WritePNG(t, dir, "firma.png", 200, 100)

	t.Run("replaces body paragraph with a sized picture", func(t *testing.T) {
		doc := openBody(t, `<w:p><w:pPr><w:jc w:val="center"/></w:pPr>`+docxtest.Run("@FIRMA_AUTORIZA@")+`</w:p>`)

		n, err := doc.SubstituteImage("@FIRMA_AUTORIZA@", firma, 1)

		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, doc.PictureCount())
		assert.NotContains(t, doc.Text(), "@FIRMA_AUTORIZA@")

		xml := string(doc.XML())
		assert.Contains(t, xml, `<w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:drawing>`)
		assert.Contains(t, xml, `<wp:extent cx="914400" cy="457200"/>`)
		assert.Contains(t, xml, `r:embed="rId2"`)

		media, ok := doc.Part("word/media/acta_image1.png")
		require.True(t, ok)
		assert.NotEmpty(t, media)

		rels, _ := doc.Part(documentRelsPart)
		assert.Contains(t, string(rels), `Id="rId2" Type="`+imageRelationshipType+`" Target="media/acta_image1.png"`)
		types, _ := doc.Part(contentTypesPart)
		assert.Contains(t, string(types), `<Default Extension="png" ContentType="image/png"/>`)
	})

	t.Run("scales width for larger signature classes", func(t *testing.T) {
		doc := openBody(t, docxtest.Paragraph("@FIRMA_LIDER@"))

		_, err := doc.SubstituteImage("@FIRMA_LIDER@", firma, 1.5)

		require.NoError(t, err)
		assert.Contains(t, string(doc.XML()), `<wp:extent cx="1371600" cy="685800"/>`)
	})

	t.Run("clears a nested table cell and keeps its properties", func(t *testing.T) {
		inner := docxtest.Table(docxtest.Paragraph("Firma: ", "@FIRMA_SATISFACCION@"), docxtest.Paragraph("Usuario"))
		doc := openBody(t, docxtest.Table(docxtest.Paragraph("Acta")+inner))

		n, err := doc.SubstituteImage("@FIRMA_SATISFACCION@", firma, 1)

		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, doc.PictureCount())
		assert.Contains(t, doc.Text(), "Usuario")
		assert.Contains(t, doc.Text(), "Acta")
		assert.Contains(t, string(doc.XML()), `<w:tc><w:tcPr><w:tcW w:w="2000" w:type="dxa"/></w:tcPr><w:p><w:r><w:drawing>`)
	})

	t.Run("matches a paragraph even when the token is split across runs", func(t *testing.T) {
		doc := openBody(t, docxtest.Paragraph("@FIRMA_", "AUTORIZA@"))

		n, err := doc.SubstituteImage("@FIRMA_AUTORIZA@", firma, 1)

		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("no match is a no-op and does not read the image", func(t *testing.T) {
		doc := openBody(t, docxtest.Paragraph("sin firma"))
		before := doc.XML()

		n, err := doc.SubstituteImage("@FIRMA_AUTORIZA@", filepath.Join(dir, "missing.png"), 1)

		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, before, doc.XML())
		_, ok := doc.Part("word/media/acta_image1.png")
		assert.False(t, ok)
	})

	t.Run("reuses one media part for repeated images", func(t *testing.T) {
		doc := openBody(t, docxtest.Paragraph("@A@")+docxtest.Paragraph("@B@"))

		_, err := doc.SubstituteImage("@A@", firma, 1)
		require.NoError(t, err)
		_, err = doc.SubstituteImage("@B@", firma, 1)
		require.NoError(t, err)

		assert.Equal(t, 2, doc.PictureCount())
		_, ok := doc.Part("word/media/acta_image2.png")
		assert.False(t, ok)
		xml := string(doc.XML())
		assert.Contains(t, xml, `<wp:docPr id="1" name="Picture 1"/>`)
		assert.Contains(t, xml, `<wp:docPr id="2" name="Picture 2"/>`)
	})

	t.Run("writes unprefixed elements when WordprocessingML is the default namespace", func(t *testing.T) {
		src := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<document xmlns="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
			`<body><p><r><t>Nombre: @NOMBRE@</t></r></p><p><r><t>@FIRMA@</t></r></p></body></document>`
		doc, err := OpenBytes(docxtest.BuildDocument(src))
		require.NoError(t, err)

		assert.Equal(t, 1, doc.SubstituteText("@NOMBRE@", "Ana"))
		n, err := doc.SubstituteImage("@FIRMA@", firma, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		xml := string(doc.XML())
		assert.Contains(t, xml, `<p><r><drawing><wp:inline`)
		assert.Contains(t, xml, `</drawing></r></p>`)
		assert.NotContains(t, xml, `<:`)
		assert.Equal(t, 1, doc.PictureCount())

		reopened, err := doc.Bytes()
		require.NoError(t, err)
		again, err := OpenBytes(reopened)
		require.NoError(t, err)
		assert.Equal(t, "Nombre: Ana\n", again.Text())
	})

	t.Run("rejects files that are not images", func(t *testing.T) {
		bogus := filepath.Join(dir, "firma.txt")
		require.NoError(t, writeFile(bogus, "not an image"))
		doc := openBody(t, docxtest.Paragraph("@A@"))

		_, err := doc.SubstituteImage("@A@", bogus, 1)

		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "failed to decode image"))
	})
}

func TestDocument_SaveAndReopen(t *testing.T) {
	dir := t.TempDir()
	firma := docxtest.WritePNG(t, dir, "firma.png", 60, 60)
	doc := openBody(t, docxtest.Paragraph("Nombre: @NOMBRE@")+docxtest.Paragraph("@FIRMA@"))

	doc.SubstituteText("@NOMBRE@", "Ana Ruiz")
	_, err := doc.SubstituteImage("@FIRMA@", firma, 1)
	require.NoError(t, err)

	out := filepath.Join(dir, "out", "documento_0.docx")
	require.NoError(t, doc.Save(out))

	reopened, err := Open(out)
	require.NoError(t, err)
	assert.Equal(t, "Nombre: Ana Ruiz\n", reopened.Text())
	assert.Equal(t, 1, reopened.PictureCount())
	_, ok := reopened.Part("word/media/acta_image1.png")
	assert.True(t, ok)
	styles, ok := reopened.Part("word/styles.xml")
	require.True(t, ok)
	assert.Contains(t, string(styles), "w:styles")
}

func TestTemplate_InstantiateIsIndependent(t *testing.T) {
	tmpl, err := NewTemplate(docxtest.Build(docxtest.Paragraph("@NOMBRE@")))
	require.NoError(t, err)

	first, err := tmpl.Instantiate()
	require.NoError(t, err)
	first.SubstituteText("@NOMBRE@", "Ana")

	second, err := tmpl.Instantiate()
	require.NoError(t, err)
	assert.Equal(t, "@NOMBRE@", second.Text())
	assert.Equal(t, "Ana", first.Text())
}

func TestLoadTemplate_InvalidFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadTemplate(filepath.Join(dir, "missing.docx"))
	assert.Error(t, err)

	notZip := filepath.Join(dir, "plantilla.docx")
	require.NoError(t, writeFile(notZip, "plain text"))
	_, err = LoadTemplate(notZip)
	assert.Error(t, err)
}
