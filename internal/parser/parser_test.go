package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"jobook/pkg/agent"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, _ = w.Write([]byte(`<?xml version="1.0"?><Types/>`))
	if documentXML != "" {
		w, err = zw.Create(docxBodyPart)
		require.NoError(t, err)
		_, err = w.Write([]byte(documentXML))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Nguyễn Văn A</w:t></w:r></w:p>
<w:p><w:r><w:t>Backend</w:t></w:r><w:r><w:t xml:space="preserve"> Developer</w:t></w:r></w:p>
<w:p><w:r><w:t>Golang</w:t><w:tab/><w:t>5 năm</w:t><w:br/><w:t>IELTS 7.0</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestDOCXExtract(t *testing.T) {
	text, err := NewDOCXTextExtractor().Extract(context.Background(), buildDOCX(t, sampleDocumentXML), "cv.docx")
	require.NoError(t, err)
	assert.Contains(t, text, "Nguyễn Văn A\n")
	assert.Contains(t, text, "Backend Developer\n")
	assert.Contains(t, text, "Golang\t5 năm\nIELTS 7.0")
}

func TestDOCXExtractErrors(t *testing.T) {
	_, err := NewDOCXTextExtractor().Extract(context.Background(), []byte("not a zip"), "cv.docx")
	assert.Error(t, err)

	_, err = NewDOCXTextExtractor().Extract(context.Background(), buildDOCX(t, ""), "cv.docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(".PDF", fakeExtractor{text: "  Golang   developer \r\n\r\n\r\n 3 years  "})
	r.Register(".docx", NewDOCXTextExtractor())
	r.Register(".txt", fakeExtractor{text: " \n "})
	r.Register(".bin", fakeExtractor{err: errors.New("boom")})

	assert.True(t, r.Supports("CV.pdf"))
	assert.False(t, r.Supports("photo.png"))

	text, err := r.Extract(context.Background(), nil, "cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Golang developer\n\n3 years", text)

	text, err = r.Extract(context.Background(), buildDOCX(t, sampleDocumentXML), "my cv.DOCX")
	require.NoError(t, err)
	assert.Equal(t, "Nguyễn Văn A\nBackend Developer\nGolang 5 năm\nIELTS 7.0", text)

	_, err = r.Extract(context.Background(), nil, "photo.png")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = r.Extract(context.Background(), nil, "empty.txt")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = r.Extract(context.Background(), nil, "x.bin")
	assert.EqualError(t, err, "boom")
}

func TestHTMLToText(t *testing.T) {
	raw := `<h2>Tuyển <b>Golang</b> dev</h2><p>Yêu cầu:<br>làm việc remote</p><ul><li>3 năm kinh nghiệm</li><li>IELTS 6.5</li></ul><script>alert(1)</script>`
	assert.Equal(t, "Tuyển Golang dev\nYêu cầu:\nlàm việc remote\n- 3 năm kinh nghiệm\n- IELTS 6.5", HTMLToText(raw))

	assert.Equal(t, "plain text\nsecond line", HTMLToText("  plain   text \n second line "))
	assert.Equal(t, "", HTMLToText(""))
}

func TestSanitizeHTML(t *testing.T) {
	raw := `<p onclick="steal()">Hi <a href="javascript:evil()" title="x">link</a><script>alert(1)</script></p><img src="a.png" onerror="x()">`
	out := SanitizeHTML(raw)
	assert.Contains(t, out, "<p>Hi ")
	assert.Contains(t, out, `<a title="x">link</a>`)
	assert.Contains(t, out, `<img src="a.png"/>`)
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "onerror")
	assert.NotContains(t, out, "javascript")

	assert.Equal(t, "no tags", SanitizeHTML("no tags"))
}

func TestSummarizeParsesJSON(t *testing.T) {
	mock := agent.NewMockChatClient("```json\n{\"summary\": \"Backend dev with 5 years of Go.\", \"skills\": [\"Go\", \"go\", \" MySQL \", \"\"], \"roles\": [\"Backend\"], \"years_experience\": 5}\n```", nil)
	s := NewLLMCVSummarizer(mock, zerolog.Nop())

	out, err := s.Summarize(context.Background(), "Nguyễn Văn A - Golang 5 năm")
	require.NoError(t, err)
	assert.Equal(t, "Backend dev with 5 years of Go.", out.Summary)
	assert.Equal(t, []string{"Go", "MySQL"}, out.Skills)
	assert.Equal(t, []string{"Backend"}, out.Roles)
	assert.Equal(t, 5, out.YearsExperience)
	assert.Equal(t, 1, mock.Calls())
	assert.Contains(t, mock.LastMessages()[0].Content, "Golang 5 năm")
}

func TestSummarizePlainTextAndErrors(t *testing.T) {
	s := NewLLMCVSummarizer(agent.NewMockChatClient("Ứng viên backend, 5 năm kinh nghiệm.", nil), zerolog.Nop())
	out, err := s.Summarize(context.Background(), "cv")
	require.NoError(t, err)
	assert.Equal(t, "Ứng viên backend, 5 năm kinh nghiệm.", out.Summary)

	empty, err := s.Summarize(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, empty.Summary)

	_, err = NewLLMCVSummarizer(nil, zerolog.Nop()).Summarize(context.Background(), "cv")
	assert.ErrorIs(t, err, ErrNoSummarizerModel)

	_, err = NewLLMCVSummarizer(agent.NewMockChatClient("", errors.New("timeout")), zerolog.Nop()).Summarize(context.Background(), "cv")
	assert.Error(t, err)
}
