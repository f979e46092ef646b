package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// suggestionThreshold is the minimum Jaro-Winkler similarity for a name to
// be offered as a suggestion.
const suggestionThreshold = 0.8

// ResolveRegions returns the immediate children of the first top-level area
// named exactly country, in API order.
func ResolveRegions(ctx context.Context, api API, country string) ([]vacancy.Region, error) {
	areas, err := api.Areas(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch areas: %w", err)
	}
	names := make([]string, 0, len(areas))
	for _, a := range areas {
		if a.Name != country {
			names = append(names, a.Name)
			continue
		}
		regions := make([]vacancy.Region, 0, len(a.Areas))
		for _, child := range a.Areas {
			regions = append(regions, vacancy.Region{ID: child.ID, Name: child.Name})
		}
		return regions, nil
	}
	return nil, &NotFoundError{Kind: "country", Name: country, Suggestion: closest(country, names)}
}

// ResolveSpecialization returns the first specialization named exactly name.
// Top-level nodes and their children are searched depth-first in API order.
func ResolveSpecialization(ctx context.Context, api API, name string) (vacancy.Specialization, error) {
	nodes, err := api.Specializations(ctx)
	if err != nil {
		return vacancy.Specialization{}, fmt.Errorf("fetch specializations: %w", err)
	}
	var names []string
	if spec, ok := findSpec(nodes, name, &names); ok {
		return spec, nil
	}
	return vacancy.Specialization{}, &NotFoundError{Kind: "specialization", Name: name, Suggestion: closest(name, names)}
}

func findSpec(nodes []SpecNode, name string, seen *[]string) (vacancy.Specialization, bool) {
	for _, n := range nodes {
		if n.Name == name {
			return vacancy.Specialization{ID: n.ID, Name: n.Name}, true
		}
		*seen = append(*seen, n.Name)
		if spec, ok := findSpec(n.Specializations, name, seen); ok {
			return spec, true
		}
	}
	return vacancy.Specialization{}, false
}

// closest returns the candidate most similar to name, or "" when none is
// similar enough.
func closest(name string, candidates []string) string {
	best, bestScore := "", suggestionThreshold
	target := strings.ToLower(name)
	for _, c := range candidates {
		if score := matchr.JaroWinkler(target, strings.ToLower(c), false); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}
