package narrative

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// MaxReferenceRunes caps the manual excerpt embedded in the prompt.
	MaxReferenceRunes = 1000

	// IrrigationAlertBelowMm triggers the irrigation warning.
	IrrigationAlertBelowMm = 30

	irrigationAlert = "ALERTA CRÍTICO: Baixa chuva. Avise que SEM IRRIGAÇÃO o plantio é inviável."
)

// Context is the structured input of one narrative.
type Context struct {
	Municipality string
	Crop         string
	CycleLabel   string
	AreaHa       float64
	ClimateLabel string
	NetProfit    float64
	// Reference is the retrieved manual excerpt; empty when retrieval failed.
	Reference string
}

var rainfallPattern = regexp.MustCompile(`\((\d+)mm\)`)

// RainfallFromLabel extracts the millimetres shown in a climate label such as
// "Ideal (50mm)". Labels without a value, like "Desconhecido", read as 0.
func RainfallFromLabel(label string) int {
	m := rainfallPattern.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	mm, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return mm
}

// NeedsIrrigationAlert reports whether the label's rainfall is below 30 mm.
func NeedsIrrigationAlert(climateLabel string) bool {
	return RainfallFromLabel(climateLabel) < IrrigationAlertBelowMm
}

// TruncateReference cuts ref to MaxReferenceRunes.
func TruncateReference(ref string) string {
	r := []rune(ref)
	if len(r) <= MaxReferenceRunes {
		return ref
	}
	return string(r[:MaxReferenceRunes])
}

var profitPrinter = message.NewPrinter(language.English)

// FormatProfit renders a currency amount with thousands separators and no
// decimals, e.g. "R$ 7,444".
func FormatProfit(v float64) string {
	return "R$ " + profitPrinter.Sprintf("%.0f", v)
}

// BuildPrompt renders the agronomist prompt.
func BuildPrompt(c Context) string {
	alert := ""
	if NeedsIrrigationAlert(c.ClimateLabel) {
		alert = irrigationAlert
	}

	var b strings.Builder
	b.WriteString("Aja como um Agrônomo Sênior. Analise este cenário:\n\n")
	b.WriteString("DADOS DO PROJETO:\n")
	fmt.Fprintf(&b, "- Município: %s\n", c.Municipality)
	fmt.Fprintf(&b, "- Cultura: %s (%s)\n", c.Crop, c.CycleLabel)
	fmt.Fprintf(&b, "- Área: %.1f ha\n", c.AreaHa)
	fmt.Fprintf(&b, "- Clima Hoje: %s\n", c.ClimateLabel)
	fmt.Fprintf(&b, "- %s\n\n", alert)
	b.WriteString("TRECHO DO MANUAL TÉCNICO (Use como referência extra):\n")
	fmt.Fprintf(&b, "\"%s\"\n\n", TruncateReference(c.Reference))
	b.WriteString("SUA MISSÃO (Responda em 3 frases curtas):\n")
	b.WriteString("1. Valide o clima/irrigação para a data.\n")
	b.WriteString("2. Explique o tempo de retorno (se for perene) e cite algo do manual se for útil.\n")
	fmt.Fprintf(&b, "3. Dê o veredito (Lucro Projetado: %s).\n", FormatProfit(c.NetProfit))
	return b.String()
}
