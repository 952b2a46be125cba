package artifact

import (
	"context"
	"sort"
	"strings"

	"github.com/budgetopt/budgetopt/internal/model"
)

// DiscoveredArtifact is one model file found under a source root.
type DiscoveredArtifact struct {
	Area   model.AreaType
	Format Format
	Info   Info
	Active bool // the file Load would pick for this area
}

// Scan lists the artifacts available in src.
// Files that do not follow the <area>_model.<ext> pattern are skipped.
func Scan(ctx context.Context, src Source) ([]DiscoveredArtifact, error) {
	infos, err := src.List(ctx)
	if err != nil {
		return nil, err
	}

	var found []DiscoveredArtifact
	for _, info := range infos {
		f, ok := FormatFromName(info.Name)
		if !ok {
			continue
		}
		stem := strings.TrimSuffix(info.Name, info.Name[strings.LastIndex(info.Name, "."):])
		areaKey, ok := strings.CutSuffix(stem, "_model")
		if !ok {
			continue
		}
		area, err := model.ParseAreaType(areaKey)
		if err != nil {
			continue
		}
		// Only canonical lowercase names are resolved by Load.
		if info.Name != ArtifactName(area, f) {
			continue
		}
		found = append(found, DiscoveredArtifact{Area: area, Format: f, Info: info})
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].Area != found[j].Area {
			return found[i].Area < found[j].Area
		}
		return formatRank(found[i].Format) < formatRank(found[j].Format)
	})

	seen := make(map[model.AreaType]bool)
	for i := range found {
		if !seen[found[i].Area] {
			found[i].Active = true
			seen[found[i].Area] = true
		}
	}
	return found, nil
}

// Missing returns the area types with no artifact in found.
func Missing(found []DiscoveredArtifact) []model.AreaType {
	have := make(map[model.AreaType]bool)
	for _, d := range found {
		have[d.Area] = true
	}
	var out []model.AreaType
	for _, a := range model.AreaTypes() {
		if !have[a] {
			out = append(out, a)
		}
	}
	return out
}

func formatRank(f Format) int {
	for i, g := range formats {
		if g == f {
			return i
		}
	}
	return len(formats)
}
