package decode

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
	"github.com/xuri/excelize/v2"
)

type decoded struct {
	text     string
	md       *models.Metadata
	children []extract.Embedded
	err      error
}

// run decodes data with a fresh registry into a text-mode sink.
func run(t *testing.T, data []byte, name, password string) decoded {
	t.Helper()
	sink := extract.NewSink(extract.NewBudget(extract.Unlimited), extract.HandlerText)
	md := models.NewMetadata()
	in := &extract.Input{Data: data, Name: name, Password: password}
	children, err := NewRegistry().Decode(in, sink, md)
	return decoded{text: *sink.Close(md), md: md, children: children, err: err}
}

func mustDecode(t *testing.T, data []byte, name string) decoded {
	t.Helper()
	d := run(t, data, name, "")
	if d.err != nil {
		t.Fatalf("Decode %s: %v", name, d.err)
	}
	return d
}

func failureCategory(err error) extract.Category {
	var df *extract.DecodeFailure
	if errors.As(err, &df) {
		return df.Category
	}
	return ""
}

func buildZip(t *testing.T, files ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.Create(f[0])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(f[1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func tinyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const wordBody = `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>%s</w:body></w:document>`

func wordPara(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

// minimalDocx returns a minimal .docx zip bytes with word/document.xml containing the given text in <w:t> tags.
func minimalDocx(t *testing.T, text string) []byte {
	return buildZip(t, [2]string{"word/document.xml", fmt.Sprintf(wordBody, wordPara(text))})
}

func TestDecode_plain(t *testing.T) {
	d := mustDecode(t, []byte("Hello world\nLine 2"), "a.txt")
	if d.text != "Hello world\nLine 2\n" {
		t.Errorf("got %q", d.text)
	}
	if ct := d.md.Get(models.ContentType); ct != TypePlain {
		t.Errorf("Content-Type: got %q", ct)
	}
}

func TestDecode_plainParagraphs(t *testing.T) {
	d := mustDecode(t, []byte("first\r\n\r\n\r\nsecond\n"), "a.txt")
	if d.text != "first\nsecond\n" {
		t.Errorf("got %q", d.text)
	}
}

func TestDecode_plainUTF8(t *testing.T) {
	d := mustDecode(t, []byte("caf\xc3\xa9"), "a.md")
	if d.text != "café\n" {
		t.Errorf("got %q", d.text)
	}
}

func TestDecode_plainInvalidUTF8(t *testing.T) {
	d := mustDecode(t, []byte("hello\x80world"), "a.rst")
	if d.text != "hello�world\n" {
		t.Errorf("got %q", d.text)
	}
}

func TestDecode_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	if err := f.SetDocProps(&excelize.DocProperties{Creator: "pavel", Title: "Budget"}); err != nil {
		t.Fatalf("SetDocProps: %v", err)
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	d := mustDecode(t, buf.Bytes(), "data.xlsx")
	if d.text != "Sheet1\nTitle\nValue 1\tValue 2\n" {
		t.Errorf("got %q", d.text)
	}
	if got := d.md.Get("dc:creator"); got != "pavel" {
		t.Errorf("dc:creator: got %q", got)
	}
	if got := d.md.Get("dc:title"); got != "Budget" {
		t.Errorf("dc:title: got %q", got)
	}
	if ct := d.md.Get(models.ContentType); ct != TypeXLSX {
		t.Errorf("Content-Type: got %q", ct)
	}
}

func protectedWorkbook(t *testing.T, password string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Secret")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf, excelize.Options{Password: password}); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.Bytes()
}

func TestDecode_protectedWorkbook(t *testing.T) {
	data := protectedWorkbook(t, "password")

	d := run(t, data, "locked.xlsx", "")
	if got := failureCategory(d.err); got != extract.CategoryEncrypted {
		t.Fatalf("no password: got category %q (err %v)", got, d.err)
	}
	if ct := d.md.Get(models.ContentType); ct != TypeProtected {
		t.Errorf("Content-Type: got %q", ct)
	}

	d = run(t, data, "locked.xlsx", "wrong")
	if got := failureCategory(d.err); got != extract.CategoryEncrypted {
		t.Fatalf("wrong password: got category %q (err %v)", got, d.err)
	}

	d = run(t, data, "locked.xlsx", "password")
	if d.err != nil {
		t.Fatalf("Decode: %v", d.err)
	}
	if d.text != "Sheet1\nSecret\n" {
		t.Errorf("got %q", d.text)
	}
	if ct := d.md.Get(models.ContentType); ct != TypeXLSX {
		t.Errorf("Content-Type: got %q", ct)
	}
	if d.md.Get("encrypted") != "true" {
		t.Error("expected encrypted=true")
	}
}

// noise returns n bytes that deflate cannot shrink.
func noise(n int) []byte {
	out := make([]byte, 0, n+sha256.Size)
	sum := sha256.Sum256([]byte("seed"))
	for len(out) < n {
		out = append(out, sum[:]...)
		sum = sha256.Sum256(sum[:])
	}
	return out[:n]
}

func TestDecode_protectedDocx(t *testing.T) {
	plain := buildZip(t,
		[2]string{"word/document.xml", fmt.Sprintf(wordBody, wordPara("Hidden words"))},
		[2]string{"word/media/image1.bin", string(noise(8 << 10))},
	)
	data, err := excelize.Encrypt(plain, &excelize.Options{Password: "s3cret"})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	d := run(t, data, "memo.docx", "s3cret")
	if d.err != nil {
		t.Fatalf("Decode: %v", d.err)
	}
	if d.text != "Hidden words\n" {
		t.Errorf("got %q", d.text)
	}
	if ct := d.md.Get(models.ContentType); ct != TypeDOCX {
		t.Errorf("Content-Type: got %q", ct)
	}
	if len(d.children) != 1 || d.children[0].Name != "image1.bin" {
		t.Errorf("children: got %+v", d.children)
	}

	d = run(t, data, "memo.docx", "wrong")
	if got := failureCategory(d.err); got != extract.CategoryEncrypted {
		t.Errorf("wrong password: got category %q (err %v)", got, d.err)
	}
}

func TestDecode_protectedSmallPackageFailsCleanly(t *testing.T) {
	// Packages under 4 KiB land in the container's mini stream, which
	// excelize cannot read back.
	data, err := excelize.Encrypt(minimalDocx(t, "tiny"), &excelize.Options{Password: "s3cret"})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	d := run(t, data, "tiny.docx", "s3cret")
	switch got := failureCategory(d.err); got {
	case extract.CategoryMalformed, extract.CategoryEncrypted:
	default:
		t.Errorf("got category %q (err %v)", got, d.err)
	}

	cfg := extract.DefaultConfig()
	cfg.Password = "s3cret"
	res, err := extract.NewAggregator(NewRegistry()).ExtractNamed(bytes.NewReader(data), "tiny.docx", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if f := res.Root().Failure; f == nil || f.Category == string(extract.CategoryRuntime) {
		t.Errorf("root failure: got %v", f)
	}
}

func TestDecode_docx(t *testing.T) {
	d := mustDecode(t, minimalDocx(t, "Searchable docx content"), "a.docx")
	if d.text != "Searchable docx content\n" {
		t.Errorf("got %q", d.text)
	}
}

func TestDecode_docxTableAndProps(t *testing.T) {
	table := `<w:tbl><w:tr><w:tc>` + wordPara("cell one") + `</w:tc><w:tc>` + wordPara("cell two") + `</w:tc></w:tr></w:tbl>`
	data := buildZip(t,
		[2]string{"word/document.xml", fmt.Sprintf(wordBody, wordPara("intro")+table)},
		[2]string{"docProps/core.xml", `<cp:coreProperties xmlns:cp="c" xmlns:dc="d"><dc:title>Plan</dc:title><dc:creator>alice</dc:creator></cp:coreProperties>`},
		[2]string{"docProps/app.xml", `<Properties><Application>Microsoft Office Word</Application></Properties>`},
	)
	d := mustDecode(t, data, "plan.docx")
	if d.text != "intro\ncell one\ncell two\n" {
		t.Errorf("got %q", d.text)
	}
	if got := d.md.Get("dc:title"); got != "Plan" {
		t.Errorf("dc:title: got %q", got)
	}
	if got := d.md.Get("dc:creator"); got != "alice" {
		t.Errorf("dc:creator: got %q", got)
	}
	if got := d.md.Get("extended-properties:Application"); got != "Microsoft Office Word" {
		t.Errorf("Application: got %q", got)
	}
}

func TestDecode_docxEmbeddedChildren(t *testing.T) {
	data := buildZip(t,
		[2]string{"word/document.xml", fmt.Sprintf(wordBody, wordPara("body"))},
		[2]string{"word/media/image1.png", string(tinyPNG(t, 2, 3))},
		[2]string{"word/embeddings/oleObject1.bin", "ole"},
		[2]string{"word/styles.xml", "<w:styles/>"},
	)
	d := mustDecode(t, data, "a.docx")
	if len(d.children) != 2 {
		t.Fatalf("children: got %d", len(d.children))
	}
	if d.children[0].Name != "image1.png" || d.children[1].Name != "oleObject1.bin" {
		t.Errorf("children: got %q, %q", d.children[0].Name, d.children[1].Name)
	}
}

// minimalDocxWithContentTypes returns a .docx zip with [Content_Types].xml pointing to a custom document path.
func minimalDocxWithContentTypes(t *testing.T, text, docPath string) []byte {
	return buildZip(t,
		[2]string{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Override PartName="/` + docPath + `" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`},
		[2]string{docPath, fmt.Sprintf(wordBody, wordPara(text))},
	)
}

func TestDecode_docxWithDocument2(t *testing.T) {
	// Simulate a DOCX with word/document2.xml instead of word/document.xml
	d := mustDecode(t, minimalDocxWithContentTypes(t, "Content from document2", "word/document2.xml"), "a.docx")
	if d.text != "Content from document2\n" {
		t.Errorf("got %q", d.text)
	}
}

func TestDecode_docxContentTypesReversedOrder(t *testing.T) {
	data := buildZip(t,
		[2]string{"[Content_Types].xml", `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Override ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml" PartName="/word/document3.xml"/>
</Types>`},
		[2]string{"word/document3.xml", fmt.Sprintf(wordBody, wordPara("Reversed &amp; order"))},
	)
	d := mustDecode(t, data, "a.docx")
	if d.text != "Reversed & order\n" {
		t.Errorf("got %q", d.text)
	}
}

func TestDecode_docxMissingBody(t *testing.T) {
	d := run(t, buildZip(t, [2]string{"word/styles.xml", "<w:styles/>"}), "a.docx", "")
	if got := failureCategory(d.err); got != extract.CategoryMalformed {
		t.Errorf("got category %q (err %v)", got, d.err)
	}
}

func slideXML(texts ...string) string {
	var b strings.Builder
	b.WriteString(`<p:sld><p:cSld><p:spTree><p:sp><p:txBody>`)
	for _, s := range texts {
		b.WriteString(`<a:p><a:r><a:t>` + s + `</a:t></a:r></a:p>`)
	}
	b.WriteString(`</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
	return b.String()
}

func TestDecode_pptx(t *testing.T) {
	d := mustDecode(t, buildZip(t, [2]string{"ppt/slides/slide1.xml", slideXML("Searchable pptx content")}), "deck.pptx")
	if d.text != "Searchable pptx content\n" {
		t.Errorf("got %q", d.text)
	}
}

func TestDecode_pptxSlideOrder(t *testing.T) {
	data := buildZip(t,
		[2]string{"ppt/slides/slide10.xml", slideXML("Tenth")},
		[2]string{"ppt/slides/slide2.xml", slideXML("Second", "More")},
		[2]string{"ppt/slides/slide1.xml", slideXML("First")},
		[2]string{"ppt/slides/_rels/slide1.xml.rels", "<Relationships/>"},
		[2]string{"ppt/media/image1.png", string(tinyPNG(t, 1, 1))},
	)
	d := mustDecode(t, data, "deck.pptx")
	if d.text != "First\nSecond\nMore\nTenth\n" {
		t.Errorf("got %q", d.text)
	}
	if len(d.children) != 1 || d.children[0].Name != "image1.png" {
		t.Errorf("children: got %+v", d.children)
	}
}

func TestDecode_pptxEmpty(t *testing.T) {
	data := buildZip(t, [2]string{"ppt/slides/other.xml", ""}, [2]string{"docProps/core.xml", "<cp:coreProperties/>"})
	d := mustDecode(t, data, "deck.pptx")
	if d.text != "" {
		t.Errorf("got %q", d.text)
	}
}

func TestDecode_pptxNotZip(t *testing.T) {
	d := run(t, []byte("not a zip"), "deck.pptx", "")
	if d.err == nil {
		t.Fatal("expected error for invalid pptx")
	}
}

// minimalODF returns a minimal OpenDocument zip with the given content.xml and optional meta.xml.
func minimalODF(t *testing.T, contentXML, metaXML string) []byte {
	files := [][2]string{{"content.xml", contentXML}}
	if metaXML != "" {
		files = append(files, [2]string{"meta.xml", metaXML})
	}
	return buildZip(t, files...)
}

func TestDecode_odp(t *testing.T) {
	contentXML := `<office:document><office:body><draw:page><draw:text-box><text:p>Searchable odp content</text:p></draw:text-box></draw:page></office:body></office:document>`
	d := mustDecode(t, minimalODF(t, contentXML, ""), "a.odp")
	if d.text != "Searchable odp content\n" {
		t.Errorf("got %q", d.text)
	}
}

func TestDecode_odpDocumentOrder(t *testing.T) {
	contentXML := `<office:document><office:body><draw:page><text:h>Slide title</text:h><text:p>Body <text:span>text</text:span></text:p></draw:page></office:body></office:document>`
	d := mustDecode(t, minimalODF(t, contentXML, ""), "a.odp")
	if d.text != "Slide title\nBody text\n" {
		t.Errorf("got %q", d.text)
	}
}

func TestDecode_odsMultipleCells(t *testing.T) {
	contentXML := `<office:document><office:body><table:table><table:table-row><table:table-cell><text:p>Cell A</text:p></table:table-cell><table:table-cell><text:p><text:span>Cell B</text:span></text:p></table:table-cell></table:table-row></table:table></office:body></office:document>`
	d := mustDecode(t, minimalODF(t, contentXML, ""), "a.ods")
	if d.text != "Cell A\nCell B\n" {
		t.Errorf("got %q", d.text)
	}
}

func TestDecode_odtMeta(t *testing.T) {
	contentXML := `<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"><office:body><office:text><text:p>One<text:tab/>two<text:s/>three</text:p></office:text></office:body></office:document-content>`
	metaXML := `<office:document-meta xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:meta="urn:oasis:names:tc:opendocument:xmlns:meta:1.0" xmlns:dc="http://purl.org/dc/elements/1.1/"><office:meta><dc:title>Report</dc:title><meta:initial-creator>Ada</meta:initial-creator><dc:creator>Grace</dc:creator><meta:keyword>alpha</meta:keyword><meta:keyword>beta</meta:keyword><meta:document-statistic meta:page-count="3"/></office:meta></office:document-meta>`
	d := mustDecode(t, minimalODF(t, contentXML, metaXML), "a.odt")
	if d.text != "One\ttwo three\n" {
		t.Errorf("got %q", d.text)
	}
	if got := d.md.Get("dc:title"); got != "Report" {
		t.Errorf("dc:title: got %q", got)
	}
	if got := d.md.Get("dc:creator"); got != "Ada" {
		t.Errorf("dc:creator: got %q", got)
	}
	if got := d.md.Get("meta:last-author"); got != "Grace" {
		t.Errorf("meta:last-author: got %q", got)
	}
	if got := d.md.Values("meta:keyword"); len(got) != 2 || got[1] != "beta" {
		t.Errorf("meta:keyword: got %q", got)
	}
	if got := d.md.Get("meta:page-count"); got != "3" {
		t.Errorf("meta:page-count: got %q", got)
	}
}

func TestDecode_odfContentNotFound(t *testing.T) {
	d := run(t, buildZip(t, [2]string{"other.xml", ""}), "a.ods", "")
	if got := failureCategory(d.err); got != extract.CategoryMalformed {
		t.Errorf("expected malformed failure when content.xml missing, got %q", got)
	}
}

// minimalPDF returns a one-page PDF with correct xref offsets.
func minimalPDF(text, title string) []byte {
	stream := "BT /F1 24 Tf 72 700 Td (" + text + ") Tj ET"
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Title (" + title + ") /Author (rmeta) >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestDecode_pdf(t *testing.T) {
	d := mustDecode(t, minimalPDF("Hello PDF", "Quarterly"), "q.pdf")
	if !strings.Contains(d.text, "Hello PDF") {
		t.Errorf("got %q", d.text)
	}
	if got := d.md.Get("dc:title"); got != "Quarterly" {
		t.Errorf("dc:title: got %q", got)
	}
	if got := d.md.Get("xmpTPg:NPages"); got != "1" {
		t.Errorf("xmpTPg:NPages: got %q", got)
	}
	if ct := d.md.Get(models.ContentType); ct != TypePDF {
		t.Errorf("Content-Type: got %q", ct)
	}
}

func TestDecode_pdfTruncated(t *testing.T) {
	data := minimalPDF("Hello", "T")
	d := run(t, data[:len(data)/2], "q.pdf", "")
	if got := failureCategory(d.err); got != extract.CategoryMalformed {
		t.Errorf("got category %q (err %v)", got, d.err)
	}
}

func TestDecode_zip(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, _ = w.Create("dir/")
	fw, _ := w.Create("dir/a.txt")
	_, _ = fw.Write([]byte("alpha"))
	fw, _ = w.Create("b.csv")
	_, _ = fw.Write([]byte("x,y\n1,2\n"))
	_ = w.Close()

	d := mustDecode(t, buf.Bytes(), "bundle.zip")
	if d.text != "" {
		t.Errorf("archive content: got %q", d.text)
	}
	if len(d.children) != 2 || d.children[0].Name != "dir/a.txt" || d.children[1].Name != "b.csv" {
		t.Fatalf("children: got %+v", d.children)
	}
	if d.children[0].Data != nil {
		t.Error("entries should be opened lazily")
	}
	data, err := d.children[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "alpha" {
		t.Errorf("child data: got %q", data)
	}
}

// storedZip builds an uncompressed archive so tests can corrupt entry bytes.
func storedZip(t *testing.T, files ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f[0], Method: zip.Store})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(f[1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAggregator_zipEntriesOpenedOnlyWhenVisited(t *testing.T) {
	data := storedZip(t,
		[2]string{"first.txt", "first entry"},
		[2]string{"broken.txt", "corrupted entry"},
		[2]string{"last.txt", "last entry"},
	)
	data = bytes.Replace(data, []byte("corrupted entry"), []byte("CORRUPTED ENTRY"), 1)
	agg := extract.NewAggregator(NewRegistry())

	cfg := extract.DefaultConfig()
	cfg.MaxEmbedded = 1
	res, err := agg.ExtractNamed(bytes.NewReader(data), "bundle.zip", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Len() != 2 || !res.Root().EmbeddedLimitReached {
		t.Fatalf("capped: got %d units, limit flag %v", res.Len(), res.Root().EmbeddedLimitReached)
	}
	for _, u := range res.Units {
		if u.Failure != nil {
			t.Errorf("unit %d: unvisited entry was read: %s", u.Index, u.Failure)
		}
	}

	cfg.MaxEmbedded = extract.Unlimited
	res, err = agg.ExtractNamed(bytes.NewReader(data), "bundle.zip", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Len() != 4 {
		t.Fatalf("unbounded: got %d units", res.Len())
	}
	if f := res.Units[2].Failure; f == nil || f.Category != string(extract.CategoryMalformed) {
		t.Errorf("broken entry: got failure %v", f)
	}
	if res.Units[3].Failure != nil {
		t.Errorf("sibling after broken entry failed: %s", res.Units[3].Failure)
	}
}

func TestDecode_html(t *testing.T) {
	page := `<!DOCTYPE html><html><head><title>Hi there</title><meta name="author" content="Ann"><style>p{}</style></head>
<body><h1>Heading</h1><p>First <b>bold</b> para.</p><script>var x;</script><ul><li>one</li><li>two</li></ul></body></html>`
	d := mustDecode(t, []byte(page), "page.html")
	if ct := d.md.Get(models.ContentType); ct != TypeHTML {
		t.Errorf("Content-Type: got %q", ct)
	}
	if got := d.md.Get("dc:title"); got != "Hi there" {
		t.Errorf("dc:title: got %q", got)
	}
	if got := d.md.Get("author"); got != "Ann" {
		t.Errorf("author: got %q", got)
	}
	for _, want := range []string{"Heading\n", "First bold para.\n", "one\n", "two\n"} {
		if !strings.Contains(d.text, want) {
			t.Errorf("missing %q in %q", want, d.text)
		}
	}
	if strings.Contains(d.text, "var x") || strings.Contains(d.text, "p{}") {
		t.Errorf("script or style leaked: %q", d.text)
	}
}

func TestDecode_htmlInlineSpacing(t *testing.T) {
	page := `<html><body><div>Lead text<p>Inner <i>very</i>  <b>strong</b>
claim.</p>tail <a href="#">link</a>end</div></body></html>`
	d := mustDecode(t, []byte(page), "inline.html")
	want := "Lead text\nInner very strong claim.\ntail linkend\n"
	if d.text != want {
		t.Errorf("text: got %q, want %q", d.text, want)
	}
}

func TestDecode_markdown(t *testing.T) {
	src := "# Guide\n\nSome *emphasis* here\nand there.\n\n```\ncode line\n```\n\n- item\n"
	d := mustDecode(t, []byte(src), "guide.md")
	if ct := d.md.Get(models.ContentType); ct != TypeMarkdown {
		t.Errorf("Content-Type: got %q", ct)
	}
	if got := d.md.Get("dc:title"); got != "Guide" {
		t.Errorf("dc:title: got %q", got)
	}
	want := "Guide\nSome emphasis here and there.\ncode line\n\nitem\n"
	if d.text != want {
		t.Errorf("got %q, want %q", d.text, want)
	}
}

func TestDecode_csv(t *testing.T) {
	d := mustDecode(t, []byte("name,qty\napple,3\n\"pear, green\",4\n"), "stock.csv")
	if d.text != "name\tqty\napple\t3\npear, green\t4\n" {
		t.Errorf("got %q", d.text)
	}
	if got := d.md.Get("csv:rows"); got != "3" {
		t.Errorf("csv:rows: got %q", got)
	}
}

func TestDecode_csvSemicolon(t *testing.T) {
	d := mustDecode(t, []byte("a;b;c\n1;2;3\n"), "eu.csv")
	if d.text != "a\tb\tc\n1\t2\t3\n" {
		t.Errorf("got %q", d.text)
	}
	if got := d.md.Get("csv:delimiter"); got != "semicolon" {
		t.Errorf("csv:delimiter: got %q", got)
	}
}

func TestDecode_image(t *testing.T) {
	d := mustDecode(t, tinyPNG(t, 4, 7), "")
	if d.text != "" {
		t.Errorf("image content: got %q", d.text)
	}
	if ct := d.md.Get(models.ContentType); ct != TypePNG {
		t.Errorf("Content-Type: got %q", ct)
	}
	if d.md.Get("tiff:ImageWidth") != "4" || d.md.Get("tiff:ImageLength") != "7" {
		t.Errorf("dimensions: got %q x %q", d.md.Get("tiff:ImageWidth"), d.md.Get("tiff:ImageLength"))
	}
}

func TestDecode_unsupported(t *testing.T) {
	d := run(t, []byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0x00, 0x13}, "blob.bin", "")
	if got := failureCategory(d.err); got != extract.CategoryUnsupported {
		t.Fatalf("got category %q (err %v)", got, d.err)
	}
	if ct := d.md.Get(models.ContentType); ct != TypeOctet {
		t.Errorf("Content-Type: got %q", ct)
	}
}

func TestDetect(t *testing.T) {
	r := NewRegistry()
	for _, tc := range []struct {
		name string
		in   extract.Input
		want string
	}{
		{"hint wins", extract.Input{Data: []byte("a,b\n1,2\n"), ContentType: "text/plain; charset=utf-8"}, TypePlain},
		{"unknown hint ignored", extract.Input{Data: tinyPNG(t, 1, 1), ContentType: "application/x-nope"}, TypePNG},
		{"markdown by name", extract.Input{Data: []byte("# T\n\ntext"), Name: "README.md"}, TypeMarkdown},
		{"html by magic", extract.Input{Data: []byte("<html><body>x</body></html>")}, TypeHTML},
		{"pdf by magic", extract.Input{Data: minimalPDF("x", "y"), Name: "x.txt"}, TypePDF},
		{"bare zip", extract.Input{Data: buildZip(t, [2]string{"a.txt", "a"})}, TypeZIP},
		{"zip named docx", extract.Input{Data: buildZip(t, [2]string{"x/y.xml", "a"}), Name: "x.docx"}, TypeDOCX},
		{"empty", extract.Input{}, TypePlain},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			if got := r.Detect(&in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRegister_overrides(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("application/x-custom", extract.DecoderFunc(func(in *extract.Input, sink *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
		called = true
		sink.WriteText("custom")
		return nil, nil
	}), ".cst")
	sink := extract.NewSink(extract.NewBudget(extract.Unlimited), extract.HandlerText)
	md := models.NewMetadata()
	if _, err := r.Decode(&extract.Input{Data: []byte("anything"), Name: "f.cst"}, sink, md); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !called {
		t.Error("custom decoder not called")
	}
}

func TestAggregator_nestedContainers(t *testing.T) {
	inner := buildZip(t,
		[2]string{"word/document.xml", fmt.Sprintf(wordBody, wordPara("inside"))},
		[2]string{"word/media/image1.png", string(tinyPNG(t, 2, 2))},
	)
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("report.docx")
	_, _ = fw.Write(inner)
	fw, _ = w.Create("notes.txt")
	_, _ = fw.Write([]byte("note text"))
	_ = w.Close()

	cfg := extract.DefaultConfig()
	cfg.Handler = extract.HandlerText
	res, err := extract.NewAggregator(NewRegistry()).ExtractNamed(bytes.NewReader(buf.Bytes()), "bundle.zip", cfg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Len() != 4 {
		t.Fatalf("units: got %d", res.Len())
	}
	wantPaths := []string{"", "/report.docx", "/report.docx/image1.png", "/notes.txt"}
	wantTypes := []string{TypeZIP, TypeDOCX, TypePNG, TypePlain}
	for i, u := range res.Units {
		if got := u.Metadata.Get(models.EmbeddedResourcePath); got != wantPaths[i] {
			t.Errorf("unit %d path: got %q", i, got)
		}
		if got := u.Metadata.Get(models.ContentType); got != wantTypes[i] {
			t.Errorf("unit %d type: got %q", i, got)
		}
		if u.Failure != nil {
			t.Errorf("unit %d failed: %s", i, u.Failure)
		}
	}
	if got := *res.Units[1].Content; got != "inside\n" {
		t.Errorf("docx content: got %q", got)
	}
	if got := *res.Units[3].Content; got != "note text\n" {
		t.Errorf("txt content: got %q", got)
	}
}
