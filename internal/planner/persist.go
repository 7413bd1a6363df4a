package planner

import (
	"log/slog"

	"github.com/star/mosaicplanner/internal/settings"
)

// SaveOnChange returns a subscriber that writes the settings carried by each
// event to path. Equipment events are skipped; the equipment file is not
// rewritten.
func SaveOnChange(path string, logger *slog.Logger) func(Event) {
	return func(ev Event) {
		switch ev.Field {
		case FieldSelection, FieldCatalog:
			return
		}
		if err := settings.Save(path, ev.Settings); err != nil {
			logger.Error("failed to save settings", "error", err, "field", string(ev.Field), "path", path)
		}
	}
}
