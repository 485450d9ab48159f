package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/yuin/goldmark"
)

var readyTemplate = template.Must(template.New("ready").Parse(
	"Your Report is [ready](<{{.URL}}>).\n",
))

var markdown = goldmark.New()

// ReadyBody renders the HTML e-mail announcing the transformed report link.
func ReadyBody(url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("link do relatório vazio")
	}

	var src bytes.Buffer
	if err := readyTemplate.Execute(&src, struct{ URL string }{URL: url}); err != nil {
		return "", fmt.Errorf("erro ao montar mensagem: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<html>\n<body>\n")
	if err := markdown.Convert(src.Bytes(), &out); err != nil {
		return "", fmt.Errorf("erro ao renderizar markdown: %w", err)
	}
	out.WriteString("</body>\n</html>\n")
	return out.String(), nil
}
