package profile

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// Earlier releases stored their settings as JSON under ~/.openbluefilter.
// On first run the new store imports everything it can from there so users
// keep their presets across the rewrite.

func legacyPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".openbluefilter", "config.json"), nil
}

func loadLegacy(logger *slog.Logger) (persisted, bool) {
	path, err := legacyPath()
	if err != nil {
		return persisted{}, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return persisted{}, false
	}
	logger.Info("found legacy configuration", "path", path)
	return parseLegacy(data), true
}

// parseLegacy converts the legacy JSON document. Intensity was stored as a
// 0..1 float; the old "Day" preset maps onto "Morning".
func parseLegacy(data []byte) persisted {
	var p persisted

	gjson.GetBytes(data, "profiles").ForEach(func(key, value gjson.Result) bool {
		id := renameLegacy(key.String())
		p.Profiles = append(p.Profiles, Profile{
			ID:                id,
			DisplayName:       id,
			TemperatureKelvin: int(value.Get("color_temperature").Int()),
			IntensityPercent:  int(value.Get("intensity").Float()*100 + 0.5),
		})
		return true
	})

	p.Enabled = gjson.GetBytes(data, "filter_enabled").Bool()
	if active := gjson.GetBytes(data, "active_profile"); active.Exists() {
		p.ActiveProfile = renameLegacy(active.String())
	}
	return p
}

func renameLegacy(id string) string {
	if id == "Day" {
		return "Morning"
	}
	return id
}
