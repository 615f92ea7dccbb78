package prompt

import (
	"fmt"
	"sort"
	"strings"

	"chart-analysis-be/pkg/fingerprint"
	"chart-analysis-be/pkg/vision"
	"chart-analysis-be/pkg/visual"
)

// ChartImage bundles one chart's original image with its derived maps.
// Any map may be nil; absent maps are omitted from the request, never
// replaced with placeholders.
type ChartImage struct {
	Original     []byte
	OriginalMIME string
	Maps         *visual.MapSet
}

// Target describes the chart under analysis.
type Target struct {
	ChartImage
	Instrument       string
	Timeframe        string
	Session          string
	BundleTimeframes []string
}

// Neighbor is one retrieved historical chart with its similarity score.
type Neighbor struct {
	ChartImage
	Filename   string
	Instrument string
	Timeframe  string
	Similarity float64
}

var mapTitles = map[fingerprint.ArtifactKind]string{
	fingerprint.KindDepthMap:    "depth map",
	fingerprint.KindEdgeMap:     "edge map",
	fingerprint.KindGradientMap: "gradient map",
}

// UnifiedBuilder assembles the single multi-part request sent to the vision
// model: system instructions, then the target and its maps, then every
// neighbor in similarity-descending order, each image labeled. The ordering
// is a correctness requirement: the model reasons about "target vs.
// neighbors" and must see them in a stable order to produce comparable
// reasoning across calls.
type UnifiedBuilder struct {
	basePrompt string
}

// NewUnifiedBuilder wraps the externally supplied, versioned instruction
// text. The builder consumes it verbatim.
func NewUnifiedBuilder(basePrompt string) *UnifiedBuilder {
	return &UnifiedBuilder{basePrompt: basePrompt}
}

// Build produces the ordered message list. injectText, when non-empty, is
// appended verbatim to the user-role text exactly once.
func (b *UnifiedBuilder) Build(target Target, neighbors []Neighbor, injectText string) []vision.Message {
	ordered := make([]Neighbor, len(neighbors))
	copy(ordered, neighbors)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Similarity > ordered[j].Similarity
	})

	parts := []vision.Part{
		vision.TextPart{Text: b.introText(target, ordered)},
	}
	parts = appendChartParts(parts, target.ChartImage, targetLabel(target))

	for i, n := range ordered {
		parts = appendChartParts(parts, n.ChartImage, neighborLabel(i, n))
	}

	if text := b.contextText(target, ordered, injectText); text != "" {
		parts = append(parts, vision.TextPart{Text: text})
	}

	return []vision.Message{
		{Role: vision.RoleSystem, Parts: []vision.Part{vision.TextPart{Text: b.basePrompt}}},
		{Role: vision.RoleUser, Parts: parts},
	}
}

func appendChartParts(parts []vision.Part, img ChartImage, label string) []vision.Part {
	mime := img.OriginalMIME
	if mime == "" {
		mime = "image/png"
	}
	parts = append(parts, vision.ImagePart{Label: label, MIME: mime, Data: img.Original})

	if img.Maps == nil {
		return parts
	}
	for _, kind := range fingerprint.MapKinds {
		data := img.Maps.Map(kind)
		if data == nil {
			continue
		}
		parts = append(parts, vision.ImagePart{
			Label: fmt.Sprintf("%s - %s", label, mapTitles[kind]),
			MIME:  "image/png",
			Data:  data,
		})
	}
	return parts
}

func targetLabel(target Target) string {
	label := "Target chart"
	if target.Instrument != "" {
		label += fmt.Sprintf(" (%s %s)", target.Instrument, target.Timeframe)
	}
	return label
}

func neighborLabel(i int, n Neighbor) string {
	label := fmt.Sprintf("Historical neighbor %d (similarity %.2f)", i+1, n.Similarity)
	if n.Instrument != "" {
		label += fmt.Sprintf(": %s %s", n.Instrument, n.Timeframe)
	}
	return label
}

func (b *UnifiedBuilder) introText(target Target, neighbors []Neighbor) string {
	var intro strings.Builder
	intro.WriteString("Analyze the target chart against its most similar historical charts.\n")
	intro.WriteString(fmt.Sprintf("You are given the target chart with its derived visual maps, followed by %d historical neighbor(s), each with their own maps.\n", len(neighbors)))
	return intro.String()
}

func (b *UnifiedBuilder) contextText(target Target, neighbors []Neighbor, injectText string) string {
	var ctx strings.Builder

	ctx.WriteString("<chart_context>\n")
	if target.Instrument != "" {
		ctx.WriteString(fmt.Sprintf("Instrument: %s\n", target.Instrument))
	}
	if target.Timeframe != "" {
		ctx.WriteString(fmt.Sprintf("Timeframe: %s\n", target.Timeframe))
	}
	if target.Session != "" {
		ctx.WriteString(fmt.Sprintf("Session: %s\n", target.Session))
	}
	if len(target.BundleTimeframes) > 0 {
		ctx.WriteString(fmt.Sprintf("Bundle timeframes available for this instrument: %s\n", strings.Join(target.BundleTimeframes, ", ")))
	}
	for i, n := range neighbors {
		ctx.WriteString(fmt.Sprintf("Neighbor %d: %s %s (%s), similarity %.4f\n", i+1, n.Instrument, n.Timeframe, n.Filename, n.Similarity))
	}
	ctx.WriteString("</chart_context>\n")

	if injectText != "" {
		ctx.WriteString("\n")
		ctx.WriteString(injectText)
	}

	return ctx.String()
}
