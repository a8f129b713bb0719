// Package pdf renders a receipt as a single-page PDF using only the standard library. No
// third-party PDF library appears anywhere in the retrieval pack, so this writes the PDF object
// graph directly: layout is intentionally minimal (label/value rows, one per line) since the
// exact typography of a receipt is a presentation concern the render worker's caller owns, not
// this package.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// Line is one label/value row printed on the receipt (e.g. "Subtotal" / "$42.00").
type Line struct {
	Label string
	Value string
}

// ReceiptData is everything Render needs; it never touches the database or the filesystem.
type ReceiptData struct {
	ReceiptNumber string
	OrderNumber   string
	Recipient     string
	PaidAt        time.Time
	Lines         []Line
}

const (
	pageWidth   = 612 // US Letter, points
	pageHeight  = 792
	marginLeft  = 56
	titleY      = 720
	firstLineY  = 660
	lineSpacing = 20
	fontSize    = 11
	titleSize   = 18
)

// Render produces the raw bytes of a one-page PDF for data. It is a pure function: same input,
// same output, no I/O.
func Render(data ReceiptData) ([]byte, error) {
	content := buildContentStream(data)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, 0, 6)
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n", len(offsets)+1))
	writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n", len(offsets)+1))
	writeObj(fmt.Sprintf(
		"%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>\nendobj\n",
		len(offsets)+1, pageWidth, pageHeight,
	))
	writeObj(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%sendstream\nendobj\n", len(offsets)+1, len(content), content))
	writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n", len(offsets)+1))

	xrefStart := buf.Len()
	objCount := len(offsets) + 1
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", objCount))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", objCount, xrefStart))

	return buf.Bytes(), nil
}

func buildContentStream(data ReceiptData) string {
	var sb strings.Builder
	sb.WriteString("BT\n")
	sb.WriteString(fmt.Sprintf("/F1 %d Tf\n", titleSize))
	writeText(&sb, marginLeft, titleY, fmt.Sprintf("Receipt %s", data.ReceiptNumber))

	sb.WriteString(fmt.Sprintf("/F1 %d Tf\n", fontSize))
	y := firstLineY
	writeText(&sb, marginLeft, y, fmt.Sprintf("Order: %s", data.OrderNumber))
	y -= lineSpacing
	writeText(&sb, marginLeft, y, fmt.Sprintf("Paid to: %s", data.Recipient))
	y -= lineSpacing
	writeText(&sb, marginLeft, y, fmt.Sprintf("Paid at: %s", data.PaidAt.Format(time.RFC1123)))
	y -= lineSpacing * 2

	for _, line := range data.Lines {
		writeText(&sb, marginLeft, y, fmt.Sprintf("%s: %s", line.Label, line.Value))
		y -= lineSpacing
	}

	sb.WriteString("ET\n")
	return sb.String()
}

func writeText(sb *strings.Builder, x, y int, text string) {
	sb.WriteString(fmt.Sprintf("%d %d Td\n(%s) Tj\n%d %d Td\n", x, y, escapePDFString(text), -x, -y))
}

func escapePDFString(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return replacer.Replace(s)
}
