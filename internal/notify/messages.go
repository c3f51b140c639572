package notify

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/candleworks/candle/internal/types"
)

//go:embed locales/*.json
var localeFS embed.FS

// messageIDs maps each reminder offset to its message template.
var messageIDs = map[types.ReminderOffset]string{
	types.OffsetWeekBefore: "reminder.week_before",
	types.OffsetDayBefore:  "reminder.day_before",
	types.OffsetDayOf:      "reminder.day_of",
}

// Messages renders localized reminder texts keyed by offset.
type Messages struct {
	localizer *i18n.Localizer
}

// NewMessages loads the embedded locale bundle and returns a renderer
// for the given language tag (e.g. "en", "fr"). Unknown languages fall
// back to English.
func NewMessages(lang string) (*Messages, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, file := range []string{"locales/active.en.json", "locales/active.fr.json"} {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("load locale %s: %w", file, err)
		}
	}

	return &Messages{localizer: i18n.NewLocalizer(bundle, lang)}, nil
}

// Render produces the reminder text for one offset of one birthday.
func (m *Messages) Render(offset types.ReminderOffset, name, date string) (string, error) {
	id, ok := messageIDs[offset]
	if !ok {
		return "", fmt.Errorf("no message template for offset %q", offset)
	}

	return m.localizer.Localize(&i18n.LocalizeConfig{
		MessageID: id,
		TemplateData: map[string]string{
			"Name": name,
			"Date": date,
		},
	})
}
