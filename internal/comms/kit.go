// Package comms drafts recipient- and language-specific explanations for a
// finding and its diagnosis. Generation is a pure template render: no side
// effects, no network, and a missing language variant is simply absent from
// the kit rather than an error.
package comms

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"text/template"

	"github.com/lodret/concord/internal/detect"
	"github.com/lodret/concord/internal/diagnose"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Recipient is who a message variant is written for.
type Recipient string

// Recipient types.
const (
	RecipientBuyer     Recipient = "BUYER"
	RecipientInternal  Recipient = "INTERNAL"
	RecipientForwarder Recipient = "FORWARDER"
)

// Channel is the medium a message variant is phrased for.
type Channel string

// Channels.
const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
	ChannelNote  Channel = "note"
)

// DefaultLanguage is the fallback when a requested language variant is
// missing from a kit.
const DefaultLanguage = "en"

// Context carries the identity strings the templates interpolate.
type Context struct {
	SenderName    string
	SenderCompany string
	BuyerName     string
	BuyerCompany  string
}

// Kit is the bundle of drafted message variants for one finding, keyed by
// recipient, channel, and language code.
type Kit struct {
	FindingID string
	Messages  map[Recipient]map[Channel]map[string]string
}

// Message returns the variant for a recipient, channel, and language,
// falling back to the default language when the requested one is missing.
func (k Kit) Message(r Recipient, c Channel, lang string) (string, bool) {
	byChannel, ok := k.Messages[r]
	if !ok {
		return "", false
	}
	byLang, ok := byChannel[c]
	if !ok {
		return "", false
	}
	if msg, ok := byLang[lang]; ok {
		return msg, true
	}
	msg, ok := byLang[DefaultLanguage]
	return msg, ok
}

// Variant is one drafted message with its addressing.
type Variant struct {
	Recipient Recipient
	Channel   Channel
	Language  string
	Body      string
}

// Variants flattens the kit into a deterministically ordered slice.
func (k Kit) Variants() []Variant {
	var out []Variant
	for _, r := range []Recipient{RecipientBuyer, RecipientInternal, RecipientForwarder} {
		byChannel := k.Messages[r]
		for _, c := range []Channel{ChannelEmail, ChannelChat, ChannelNote} {
			byLang := byChannel[c]
			langs := make([]string, 0, len(byLang))
			for lang := range byLang {
				langs = append(langs, lang)
			}
			sort.Strings(langs)
			for _, lang := range langs {
				out = append(out, Variant{Recipient: r, Channel: c, Language: lang, Body: byLang[lang]})
			}
		}
	}
	return out
}

// templateData is what every message template renders against.
type templateData struct {
	Title            string
	Description      string
	FieldPath        string
	RecommendedValue string
	ActionSummary    string
	Rationale        string
	Risk             string
	AffectedDocs     string
	SenderName       string
	SenderCompany    string
	BuyerName        string
	BuyerCompany     string
}

var kitTemplates = mustLoadTemplates()

func mustLoadTemplates() map[string]*template.Template {
	out := make(map[string]*template.Template)
	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		panic(fmt.Sprintf("comms: reading embedded templates: %v", err))
	}
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		tmpl, err := template.ParseFS(templateFS, "templates/"+entry.Name())
		if err != nil {
			panic(fmt.Sprintf("comms: parsing template %s: %v", entry.Name(), err))
		}
		out[name] = tmpl
	}
	return out
}

// GenerateKit renders every available message variant for the finding. The
// kit is generated fresh from the current finding and diagnosis and is never
// mutated in place.
func GenerateKit(f detect.Finding, diag diagnose.Result, ctx Context) (Kit, error) {
	var docs []string
	seen := make(map[string]bool)
	for _, dv := range f.DetectedValues {
		name := dv.Doc.DisplayName()
		if !seen[name] {
			seen[name] = true
			docs = append(docs, name)
		}
	}

	data := templateData{
		Title:            f.Title,
		Description:      f.Description,
		FieldPath:        f.FieldPath,
		RecommendedValue: diag.RecommendedValue,
		ActionSummary:    diag.Resolution.ActionSummary,
		Rationale:        diag.Resolution.Rationale,
		Risk:             diag.Resolution.RiskIfIgnored,
		AffectedDocs:     strings.Join(docs, ", "),
		SenderName:       ctx.SenderName,
		SenderCompany:    ctx.SenderCompany,
		BuyerName:        ctx.BuyerName,
		BuyerCompany:     ctx.BuyerCompany,
	}

	kit := Kit{FindingID: f.ID, Messages: make(map[Recipient]map[Channel]map[string]string)}
	for name, tmpl := range kitTemplates {
		recipient, channel, lang, ok := parseVariantName(name)
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return Kit{}, fmt.Errorf("rendering %s: %w", name, err)
		}
		if kit.Messages[recipient] == nil {
			kit.Messages[recipient] = make(map[Channel]map[string]string)
		}
		if kit.Messages[recipient][channel] == nil {
			kit.Messages[recipient][channel] = make(map[string]string)
		}
		kit.Messages[recipient][channel][lang] = strings.TrimSpace(buf.String())
	}
	return kit, nil
}

// parseVariantName splits "buyer_email_en" into its recipient, channel, and
// language parts.
func parseVariantName(name string) (Recipient, Channel, string, bool) {
	parts := strings.Split(name, "_")
	if len(parts) != 3 {
		return "", "", "", false
	}
	var recipient Recipient
	switch parts[0] {
	case "buyer":
		recipient = RecipientBuyer
	case "internal":
		recipient = RecipientInternal
	case "forwarder":
		recipient = RecipientForwarder
	default:
		return "", "", "", false
	}
	channel := Channel(parts[1])
	switch channel {
	case ChannelEmail, ChannelChat, ChannelNote:
	default:
		return "", "", "", false
	}
	return recipient, channel, parts[2], true
}
