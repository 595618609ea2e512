package quotation

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

const (
	fontFamily  = "quote"
	pageMargin  = 15.0
	lineHeight  = 6.0
	colDescW    = 90.0
	colQtyW     = 20.0
	colPriceW   = 35.0
	colAmountW  = 35.0
	headerFontP = 16.0
	rowHeight   = 7.0
	pageHeight  = 297.0

	partyBlockH = lineHeight + 3*(lineHeight-1)
	headBlockH  = 10 + lineHeight + 2 + 2*partyBlockH + 2 + 4 + rowHeight
	totalsH     = 3 * rowHeight
)

// MaxItems is the number of item rows that fit on the page when both parties
// fill every line. Notes take further space and are checked at render time.
func MaxItems() int {
	area := pageHeight - 2*pageMargin - headBlockH - totalsH
	return int(area / rowHeight)
}

// Renderer draws quotations with fpdf. When FontPath names a TTF file it is
// used for every string, which is required for Thai text; otherwise the core
// Helvetica font is used with a cp1252 translator.
type Renderer struct {
	fontPath string
	logger   *logging.Logger
}

func NewRenderer(fontPath string, logger *logging.Logger) *Renderer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Renderer{fontPath: fontPath, logger: logger}
}

// Render validates q and writes a one-page PDF to w.
func (r *Renderer) Render(w io.Writer, q Quotation) error {
	if err := q.Validate(); err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)

	family, tr := "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
	if r.fontPath != "" {
		pdf.AddUTF8Font(fontFamily, "", r.fontPath)
		pdf.AddUTF8Font(fontFamily, "B", r.fontPath)
		family, tr = fontFamily, func(s string) string { return s }
	}
	pdf.SetTitle("Quotation "+q.Number, true)
	pdf.AddPage()

	pdf.SetFont(family, "B", headerFontP)
	pdf.CellFormat(0, 10, tr("QUOTATION"), "", 1, "C", false, 0, "")
	pdf.SetFont(family, "", 10)
	pdf.CellFormat(0, lineHeight, tr(fmt.Sprintf("No. %s    Date %s", q.Number, q.Date.Format("2006-01-02"))), "", 1, "R", false, 0, "")
	pdf.Ln(2)

	writeParty(pdf, family, tr, "From", q.Company)
	pdf.Ln(2)
	writeParty(pdf, family, tr, "To", q.Customer)
	pdf.Ln(4)

	pdf.SetFont(family, "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(colDescW, rowHeight, tr("Description"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(colQtyW, rowHeight, tr("Qty"), "1", 0, "R", true, 0, "")
	pdf.CellFormat(colPriceW, rowHeight, tr("Unit price"), "1", 0, "R", true, 0, "")
	pdf.CellFormat(colAmountW, rowHeight, tr("Amount"), "1", 1, "R", true, 0, "")

	if err := checkFit(pdf, tr, q); err != nil {
		return err
	}

	pdf.SetFont(family, "", 10)
	for _, it := range q.Items {
		pdf.CellFormat(colDescW, rowHeight, tr(it.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colQtyW, rowHeight, formatQty(it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colPriceW, rowHeight, FormatMoney(it.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colAmountW, rowHeight, FormatMoney(it.Amount()), "1", 1, "R", false, 0, "")
	}

	totals := q.Totals()
	labelW := colDescW + colQtyW + colPriceW
	pdf.CellFormat(labelW, rowHeight, tr("Subtotal"), "", 0, "R", false, 0, "")
	pdf.CellFormat(colAmountW, rowHeight, FormatMoney(totals.Subtotal), "1", 1, "R", false, 0, "")
	pdf.CellFormat(labelW, rowHeight, tr(fmt.Sprintf("VAT %s%%", formatQty(q.VATPercent))), "", 0, "R", false, 0, "")
	pdf.CellFormat(colAmountW, rowHeight, FormatMoney(totals.VAT), "1", 1, "R", false, 0, "")
	pdf.SetFont(family, "B", 10)
	pdf.CellFormat(labelW, rowHeight, tr("Total"), "", 0, "R", false, 0, "")
	pdf.CellFormat(colAmountW, rowHeight, FormatMoney(totals.Total), "1", 1, "R", false, 0, "")

	if q.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont(family, "", 9)
		pdf.MultiCell(0, 5, tr(q.Notes), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("quotation: build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("quotation: write pdf: %w", err)
	}
	r.logger.Debug("quotation rendered", "number", q.Number, "items", len(q.Items))
	return nil
}

// checkFit rejects quotations whose rows, totals and notes would run past the
// bottom margin. Automatic page breaks are off, so fpdf would draw them
// off the page without complaint.
func checkFit(pdf *fpdf.Fpdf, tr func(string) string, q Quotation) error {
	pageW, pageH := pdf.GetPageSize()
	notesH := 0.0
	if q.Notes != "" {
		pdf.SetFontSize(9)
		lines := 0
		for _, para := range strings.Split(tr(q.Notes), "\n") {
			lines += int(pdf.GetStringWidth(para)/(pageW-2*pageMargin)) + 1
		}
		notesH = 4 + 5*float64(lines)
	}
	capacity := int((pageH - pageMargin - pdf.GetY() - totalsH - notesH) / rowHeight)
	if capacity < 0 {
		capacity = 0
	}
	if len(q.Items) > capacity {
		return fmt.Errorf("%w: %d items do not fit on one page (room for %d)", ErrInvalid, len(q.Items), capacity)
	}
	return nil
}

func writeParty(pdf *fpdf.Fpdf, family string, tr func(string) string, label string, p Party) {
	pdf.SetFont(family, "B", 10)
	pdf.CellFormat(0, lineHeight, tr(label+": "+p.Name), "", 1, "L", false, 0, "")
	pdf.SetFont(family, "", 10)
	for _, line := range []string{p.Address, phoneLine(p.Phone), taxLine(p.TaxID)} {
		if line != "" {
			pdf.CellFormat(0, lineHeight-1, tr(line), "", 1, "L", false, 0, "")
		}
	}
}

func phoneLine(v string) string {
	if v == "" {
		return ""
	}
	return "Tel. " + v
}

func taxLine(v string) string {
	if v == "" {
		return ""
	}
	return "Tax ID " + v
}

func formatQty(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
